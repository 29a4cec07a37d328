package partyapi

import "encoding/json"

// envelope is the common {data, message} response wrapper.
type envelope[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

type Article struct {
	Title    string `json:"title"`
	Contents string `json:"contents"`
}

type Party struct {
	ID           int64   `json:"id"`
	Revision     int64   `json:"revision"`
	UserUniqueID int64   `json:"userUniqueId"`
	Article      Article `json:"article"`
	MaxMembers   int     `json:"maxMembers"`
	Status       string  `json:"status"`
}

type Resume struct {
	ID       int64  `json:"id"`
	Contents string `json:"contents"`
}

// SignIn is the body returned by the sign-in endpoint.
type SignIn struct {
	CSRFToken    string `json:"csrfToken"`
	RefreshToken string `json:"refreshToken"`
	UserUniqueID int64  `json:"userUniqueId"`
	UserName     string `json:"userName"`
}

type appliedParty struct {
	PartyRecruitID int64 `json:"partyRecruitId"`
}

type resumeRequest struct {
	Contents string `json:"contents"`
}

func decodeResume(raw json.RawMessage) (*Resume, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var r Resume
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
