package server

import "mooddiary/pkg/domain"

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type textRequest struct {
	Text string `json:"text"`
}

type messageRequest struct {
	Message string `json:"message"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type replyResponse struct {
	AIResponse    string                    `json:"aiResponse"`
	Conversations []domain.ConversationTurn `json:"conversations"`
}

type entryListResponse struct {
	Items []domain.DiaryEntry `json:"items"`
	Count int                 `json:"count"`
}
