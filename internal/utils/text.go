package utils

import (
	"regexp"
	"strings"
)

var (
	hashtagRe = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_&])#([\p{L}\p{N}_]{1,50})`)
	mentionRe = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_@])@([a-zA-Z0-9_]{1,30})`)
)

// ExtractHashtags 提取 #话题，统一小写并去重，保持出现顺序
func ExtractHashtags(content string) []string {
	return uniqueMatches(hashtagRe, content, true)
}

// ExtractMentions 提取 @用户名，去重，保持出现顺序
func ExtractMentions(content string) []string {
	return uniqueMatches(mentionRe, content, false)
}

func uniqueMatches(re *regexp.Regexp, content string, lower bool) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, m := range re.FindAllStringSubmatch(content, -1) {
		v := m[1]
		key := strings.ToLower(v)
		if lower {
			v = key
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

// NormalizeTag 去掉前缀 # 并转小写
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
}
