package models

import "time"

// ChatUser 聊天联系人
type ChatUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"` // Online / Away / Offline
	Avatar string `json:"avatar"`
}

// Message 聊天消息
type Message struct {
	ID                string    `json:"id"`
	SenderID          string    `json:"sender_id"`
	SenderName        string    `json:"sender_name"`
	Text              string    `json:"text"`
	Timestamp         time.Time `json:"timestamp"`
	IsFromCurrentUser bool      `json:"is_from_current_user"`
}

// Conversation 会话
type Conversation struct {
	ID            string    `json:"id"`
	User          ChatUser  `json:"user"`
	LastMessage   string    `json:"last_message"`
	LastTimestamp time.Time `json:"last_timestamp"`
	UnreadCount   int       `json:"unread_count"`
	Messages      []Message `json:"messages"`
}
