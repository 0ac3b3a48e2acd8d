package models

import (
	"encoding/json"
	"errors"
	"strings"
)

// Link 个人主页链接。
// 旧客户端直接提交 URL 字符串，新客户端提交 {label, url}，统一转换为对象形式存储。
type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

var ErrInvalidLink = errors.New("link must be a url string or an object with a url")

func (l *Link) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return ErrInvalidLink
		}
		*l = Link{Label: labelFromURL(raw), URL: raw}
		return nil
	}

	var obj struct {
		Label string `json:"label"`
		URL   string `json:"url"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return ErrInvalidLink
	}
	obj.URL = strings.TrimSpace(obj.URL)
	if obj.URL == "" {
		return ErrInvalidLink
	}
	if obj.Label == "" {
		obj.Label = labelFromURL(obj.URL)
	}
	*l = Link{Label: strings.TrimSpace(obj.Label), URL: obj.URL}
	return nil
}

// labelFromURL 取域名作为默认标签
func labelFromURL(u string) string {
	s := u
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimPrefix(s, "www.")
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	return s
}
