package utils

import (
	"hash/fnv"
	"strings"
)

// UnknownUserName 作者信息缺失时的占位名
const UnknownUserName = "Unknown User"

var avatarEmojis = []string{"🌱", "🌿", "🍃", "🦊", "🐼", "🦉", "🐸", "🚀", "💡", "✨", "🎯", "💎"}

// DefaultAvatar 按用户 ID 稳定地挑选一个 emoji 作为默认头像
func DefaultAvatar(userID string) string {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return avatarEmojis[h.Sum32()%uint32(len(avatarEmojis))]
}

// DisplayName 空白名称回退为占位名
func DisplayName(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return UnknownUserName
	}
	return name
}
