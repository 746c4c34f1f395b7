package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"vitalmesh/internal/models"

	"github.com/google/uuid"
)

// ErrConversationNotFound 会话不存在
var ErrConversationNotFound = errors.New("conversation not found")

// ErrEmptyMessage 消息内容为空
var ErrEmptyMessage = errors.New("empty message")

// CurrentUser 本地用户
var CurrentUser = models.ChatUser{ID: "current_user", Name: "You", Status: "Online"}

// ChatService 内存中的模拟聊天（没有后端）
type ChatService struct {
	mu            sync.RWMutex
	conversations map[string]*models.Conversation
	now           func() time.Time
}

// NewChatService 创建聊天服务并写入演示数据
func NewChatService() *ChatService {
	s := &ChatService{
		conversations: make(map[string]*models.Conversation),
		now:           time.Now,
	}
	s.seed(s.now())
	return s
}

// ListConversations 按最后消息时间倒序，不包含消息列表
func (s *ChatService) ListConversations() []models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		item := *c
		item.Messages = nil
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastTimestamp.After(out[j].LastTimestamp)
	})
	return out
}

// GetConversation 返回会话副本（包含消息）
func (s *ChatService) GetConversation(id string) (models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return models.Conversation{}, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	item := *c
	item.Messages = append([]models.Message(nil), c.Messages...)
	return item, nil
}

// SendMessage 以当前用户身份发送消息，并把会话标记为已读
func (s *ChatService) SendMessage(conversationID, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[conversationID]
	if !ok {
		return models.Message{}, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}

	msg := models.Message{
		ID:                uuid.NewString(),
		SenderID:          CurrentUser.ID,
		SenderName:        CurrentUser.Name,
		Text:              text,
		Timestamp:         s.now(),
		IsFromCurrentUser: true,
	}
	c.Messages = append(c.Messages, msg)
	c.LastMessage = msg.Text
	c.LastTimestamp = msg.Timestamp
	c.UnreadCount = 0
	return msg, nil
}

func (s *ChatService) seed(now time.Time) {
	users := []models.ChatUser{
		{ID: "user1", Name: "Sergeant García", Status: "Online", Avatar: "👨‍✈️"},
		{ID: "user2", Name: "Corporal López", Status: "Online", Avatar: "👨‍💼"},
		{ID: "user3", Name: "Private Martínez", Status: "Away", Avatar: "👨‍🦱"},
		{ID: "user4", Name: "Sergeant Rodriguez", Status: "Offline", Avatar: "👨‍🦲"},
	}
	incoming := func(id string, u models.ChatUser, text string, ago time.Duration) models.Message {
		return models.Message{ID: id, SenderID: u.ID, SenderName: u.Name, Text: text, Timestamp: now.Add(-ago)}
	}
	outgoing := func(id, text string, ago time.Duration) models.Message {
		return models.Message{ID: id, SenderID: CurrentUser.ID, SenderName: CurrentUser.Name, Text: text, Timestamp: now.Add(-ago), IsFromCurrentUser: true}
	}

	convs := []models.Conversation{
		{
			ID: "conv1", User: users[0], UnreadCount: 2,
			Messages: []models.Message{
				incoming("msg1", users[0], "Hola, ¿cómo estás?", 2*time.Hour),
				outgoing("msg2", "¡Bien! ¿Y tú?", 30*time.Minute),
				incoming("msg3", users[0], "¿Cómo está el equipo?", 5*time.Minute),
			},
		},
		{
			ID: "conv2", User: users[1],
			Messages: []models.Message{
				incoming("msg4", users[1], "¿Dónde estás?", 90*time.Minute),
				outgoing("msg5", "Estoy en la base", 80*time.Minute),
				incoming("msg6", users[1], "Entendido, nos vemos en 15 minutos", time.Hour),
			},
		},
		{
			ID: "conv3", User: users[2],
			Messages: []models.Message{
				incoming("msg7", users[2], "Reportando posición", 3*time.Hour),
			},
		},
		{
			ID: "conv4", User: users[3],
			Messages: []models.Message{
				incoming("msg8", users[3], "Volveré en línea pronto", 48*time.Hour),
			},
		},
	}
	for i := range convs {
		c := convs[i]
		last := c.Messages[len(c.Messages)-1]
		c.LastMessage = last.Text
		c.LastTimestamp = last.Timestamp
		s.conversations[c.ID] = &c
	}
}
