package services

import (
	"errors"
	"testing"

	"krafink/internal/models"
)

func TestCreatePost(t *testing.T) {
	env := newTestEnv(t)
	a := env.register(t, "a")
	b := env.register(t, "bob")

	item, err := env.svc.Content.CreatePost(env.ctx, a.ID, PostInput{
		Content: "Hello <b>world</b> #Go #art #go @bob @a",
	})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	p := item.Post
	if p.Visibility != models.VisibilityPublic {
		t.Errorf("visibility should default to public, got %s", p.Visibility)
	}
	if len(p.Hashtags) != 2 || p.Hashtags[0] != "go" || p.Hashtags[1] != "art" {
		t.Errorf("unexpected hashtags: %v", p.Hashtags)
	}
	if item.Author == nil || item.Author.ID != a.ID {
		t.Errorf("item should carry the author")
	}
	if env.user(t, a.ID).PostsCount != 1 {
		t.Errorf("posts_count should be 1")
	}
	if n := env.count(t, &models.Notification{}, "user_id = ? AND type = ?", b.ID, models.NotificationTypeMention); n != 1 {
		t.Errorf("mentioned user should be notified once, got %d", n)
	}
	if n := env.count(t, &models.Notification{}, "user_id = ?", a.ID); n != 0 {
		t.Errorf("self mention must not notify, got %d", n)
	}
}

func TestCreatePostValidation(t *testing.T) {
	env := newTestEnv(t)
	a := env.register(t, "a")

	if _, err := env.svc.Content.CreatePost(env.ctx, a.ID, PostInput{Content: "  <b></b> "}); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("expected empty content, got %v", err)
	}
	if _, err := env.svc.Content.CreatePost(env.ctx, a.ID, PostInput{Content: "x", Visibility: "private"}); !errors.Is(err, ErrInvalidVisibility) {
		t.Errorf("expected invalid visibility, got %v", err)
	}
	item, err := env.svc.Content.CreatePost(env.ctx, a.ID, PostInput{Images: []string{"/uploads/2024/01/x.png"}})
	if err != nil || len(item.Post.Images) != 1 {
		t.Errorf("image-only post should be accepted: %v", err)
	}
}

func TestFollowersOnlyVisibility(t *testing.T) {
	env := newTestEnv(t)
	a := env.register(t, "a")
	b := env.register(t, "b")
	c := env.register(t, "c")
	p := env.post(t, b, "friends only", models.VisibilityFollowers)

	if _, err := env.svc.Graph.ToggleFollow(env.ctx, a.ID, b.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.Content.GetPost(env.ctx, a.ID, p.ID); err != nil {
		t.Errorf("follower should see the post: %v", err)
	}
	if _, err := env.svc.Content.GetPost(env.ctx, c.ID, p.ID); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("non follower should get not found, got %v", err)
	}
	if _, err := env.svc.Content.GetPost(env.ctx, "", p.ID); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("anonymous viewer should get not found, got %v", err)
	}
	if _, err := env.svc.Content.CreateComment(env.ctx, c.ID, p.ID, CommentInput{Content: "hi"}); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("non follower cannot comment, got %v", err)
	}
}

func TestUpdatePost(t *testing.T) {
	env := newTestEnv(t)
	a := env.register(t, "a")
	b := env.register(t, "b")
	p := env.post(t, a, "old #one", "")

	content := "new #two"
	item, err := env.svc.Content.UpdatePost(env.ctx, a.ID, p.ID, PostUpdate{Content: &content})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if item.Post.Content != "new #two" || len(item.Post.Hashtags) != 1 || item.Post.Hashtags[0] != "two" {
		t.Errorf("unexpected updated post: %+v", item.Post)
	}
	if _, err := env.svc.Content.UpdatePost(env.ctx, b.ID, p.ID, PostUpdate{Content: &content}); !errors.Is(err, ErrForbidden) {
		t.Errorf("only the author may update, got %v", err)
	}
}

func TestCommentThreads(t *testing.T) {
	env := newTestEnv(t)
	a := env.register(t, "a")
	b := env.register(t, "b")
	c := env.register(t, "c")
	p := env.post(t, a, "thread", "")

	top, err := env.svc.Content.CreateComment(env.ctx, b.ID, p.ID, CommentInput{Content: "first"})
	if err != nil {
		t.Fatal(err)
	}
	reply, err := env.svc.Content.CreateComment(env.ctx, c.ID, p.ID, CommentInput{Content: "reply", ParentID: top.ID})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.Content.CreateComment(env.ctx, a.ID, p.ID, CommentInput{Content: "deep", ParentID: reply.ID}); !errors.Is(err, ErrNestedReply) {
		t.Errorf("reply to a reply should be rejected, got %v", err)
	}
	other := env.post(t, a, "other", "")
	if _, err := env.svc.Content.CreateComment(env.ctx, a.ID, other.ID, CommentInput{Content: "x", ParentID: top.ID}); !errors.Is(err, ErrNestedReply) {
		t.Errorf("parent from another post should be rejected, got %v", err)
	}

	if got := env.reloadPost(t, p.ID).CommentsCount; got != 2 {
		t.Errorf("expected comments_count 2, got %d", got)
	}
	// 帖子作者收到两条，父评论作者收到一条回复通知
	if n := env.count(t, &models.Notification{}, "user_id = ? AND type = ?", a.ID, models.NotificationTypeComment); n != 2 {
		t.Errorf("post author should get 2 comment notifications, got %d", n)
	}
	if n := env.count(t, &models.Notification{}, "user_id = ? AND type = ?", b.ID, models.NotificationTypeComment); n != 1 {
		t.Errorf("parent author should get 1 reply notification, got %d", n)
	}

	if _, err := env.svc.Engagement.ToggleLike(env.ctx, a.ID, reply.ID, models.TargetComment); err != nil {
		t.Fatal(err)
	}
	list, err := env.svc.Content.ListComments(env.ctx, a.ID, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || len(list[0].Replies) != 1 {
		t.Fatalf("expected one thread with one reply, got %+v", list)
	}
	if list[0].RepliesCount != 1 || !list[0].Replies[0].UserLiked || list[0].UserLiked {
		t.Errorf("unexpected thread state: %+v", list[0])
	}

	// 删除顶层评论连同回复
	if err := env.svc.Content.DeleteComment(env.ctx, c.ID, top.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("only the author may delete, got %v", err)
	}
	if err := env.svc.Content.DeleteComment(env.ctx, b.ID, top.ID); err != nil {
		t.Fatal(err)
	}
	if got := env.reloadPost(t, p.ID).CommentsCount; got != 0 {
		t.Errorf("comments_count should drop by 2, got %d", got)
	}
	if n := env.count(t, &models.Comment{}, "post_id = ?", p.ID); n != 0 {
		t.Errorf("replies should be removed, got %d", n)
	}
	if n := env.count(t, &models.Like{}, "target_id = ?", reply.ID); n != 0 {
		t.Errorf("reply likes should be removed, got %d", n)
	}
}

func TestDeleteReplyAdjustsParent(t *testing.T) {
	env := newTestEnv(t)
	a := env.register(t, "a")
	p := env.post(t, a, "post", "")
	top, _ := env.svc.Content.CreateComment(env.ctx, a.ID, p.ID, CommentInput{Content: "top"})
	reply, err := env.svc.Content.CreateComment(env.ctx, a.ID, p.ID, CommentInput{Content: "reply", ParentID: top.ID})
	if err != nil {
		t.Fatal(err)
	}
	if err := env.svc.Content.DeleteComment(env.ctx, a.ID, reply.ID); err != nil {
		t.Fatal(err)
	}
	var parent models.Comment
	env.db.First(&parent, "id = ?", top.ID)
	if parent.RepliesCount != 0 {
		t.Errorf("parent replies_count should be 0, got %d", parent.RepliesCount)
	}
	if got := env.reloadPost(t, p.ID).CommentsCount; got != 1 {
		t.Errorf("comments_count should be 1, got %d", got)
	}
}

func TestDeletePostCascades(t *testing.T) {
	env := newTestEnv(t)
	a := env.register(t, "a")
	b := env.register(t, "b")
	p := env.post(t, a, "doomed", "")

	c, err := env.svc.Content.CreateComment(env.ctx, b.ID, p.ID, CommentInput{Content: "c"})
	if err != nil {
		t.Fatal(err)
	}
	env.svc.Engagement.ToggleLike(env.ctx, b.ID, p.ID, "")
	env.svc.Engagement.ToggleLike(env.ctx, a.ID, c.ID, models.TargetComment)
	env.svc.Engagement.ToggleSave(env.ctx, b.ID, p.ID)

	if err := env.svc.Content.DeletePost(env.ctx, b.ID, p.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("only the author may delete, got %v", err)
	}
	if err := env.svc.Content.DeletePost(env.ctx, a.ID, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if n := env.count(t, &models.Comment{}, "post_id = ?", p.ID); n != 0 {
		t.Errorf("comments remain: %d", n)
	}
	if n := env.count(t, &models.Like{}, "target_id IN ?", []string{p.ID, c.ID}); n != 0 {
		t.Errorf("likes remain: %d", n)
	}
	if n := env.count(t, &models.Save{}, "post_id = ?", p.ID); n != 0 {
		t.Errorf("saves remain: %d", n)
	}
	if n := env.count(t, &models.Notification{}, "post_id = ?", p.ID); n != 0 {
		t.Errorf("notifications remain: %d", n)
	}
	if env.user(t, a.ID).PostsCount != 0 {
		t.Errorf("posts_count should be 0")
	}
	if _, err := env.svc.Content.GetPost(env.ctx, a.ID, p.ID); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("deleted post should be gone, got %v", err)
	}
}

// 同一条评论被并发删除两次：第二次删除 0 行，计数不再回退
func TestDeleteCommentTreeStale(t *testing.T) {
	env := newTestEnv(t)
	a := env.register(t, "a")
	p := env.post(t, a, "post", "")
	top, err := env.svc.Content.CreateComment(env.ctx, a.ID, p.ID, CommentInput{Content: "top"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.Content.CreateComment(env.ctx, a.ID, p.ID, CommentInput{Content: "reply", ParentID: top.ID}); err != nil {
		t.Fatal(err)
	}
	keep, err := env.svc.Content.CreateComment(env.ctx, a.ID, p.ID, CommentInput{Content: "other"})
	if err != nil {
		t.Fatal(err)
	}

	stale := top.Comment
	if err := deleteCommentTree(env.db, &stale); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := deleteCommentTree(env.db, &stale); !errors.Is(err, ErrCommentNotFound) {
		t.Fatalf("second delete should report not found, got %v", err)
	}

	rows := env.count(t, &models.Comment{}, "post_id = ?", p.ID)
	if got := env.reloadPost(t, p.ID).CommentsCount; int64(got) != rows || rows != 1 {
		t.Fatalf("comments_count=%d, rows=%d", got, rows)
	}
	if n := env.count(t, &models.Comment{}, "id = ?", keep.ID); n != 1 {
		t.Errorf("unrelated comment removed")
	}
}
