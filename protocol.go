package main

import "encoding/json"

// Client -> Server message types
const (
	MsgJoin             = "join"
	MsgLeave            = "leave"
	MsgMove             = "move"
	MsgToggleViewerOnly = "toggleViewerOnly"
	MsgRegister         = "register"
	MsgLogin            = "login"
	MsgAuth             = "auth"
	MsgProfile          = "profile"
)

// Server -> Client message types
const (
	MsgWelcome           = "welcome"
	MsgSnapshot          = "gameStateSnapshot"
	MsgStageChange       = "stageChange"
	MsgFightersSelected  = "fightersSelected"
	MsgPreCeremonyStart  = "preCeremonyStart"
	MsgSponsorBanner     = "sponsorBanner"
	MsgMatchStart        = "matchStart"
	MsgPlayerMoved       = "playerMoved"
	MsgMatchEnd          = "matchEnd"
	MsgMatchDraw         = "matchDraw"
	MsgPlayerRoleChanged = "playerRoleChanged"
	MsgGameStateReset    = "gameStateReset"
	MsgPlayerCount       = "playerCountUpdate"
	MsgAuthOK            = "authOk"
	MsgProfileData       = "profileData"
	MsgError             = "error"
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t" msgpack:"t"`
	Data interface{} `json:"d,omitempty" msgpack:"d,omitempty"`
}

// InEnvelope is used for incoming messages; json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// JoinMsg is sent when a client wants to enter the arena
type JoinMsg struct {
	Name       string `json:"name"`
	ViewerOnly bool   `json:"viewerOnly"`
}

// MoveMsg is a fighter's movement intent
type MoveMsg struct {
	Direction string  `json:"direction"`
	DeltaTime float64 `json:"deltaTime"`
}

// ToggleViewerOnlyMsg opts a participant in or out of role selection
type ToggleViewerOnlyMsg struct {
	ViewerOnly bool `json:"viewerOnly"`
}

// WelcomeMsg is sent to a participant when they join
type WelcomeMsg struct {
	ID          string           `json:"id"`
	Participant ParticipantState `json:"participant"`
	RingRadius  float64          `json:"ringRadius"`
}

// SnapshotMsg is the full arena view sent to a newly joined client
type SnapshotMsg struct {
	Fighters      []ParticipantState `json:"fighters"`
	Referee       *ParticipantState  `json:"referee"`
	Viewers       []ParticipantState `json:"viewers"`
	Stage         Stage              `json:"stage"`
	TimeRemaining int64              `json:"timeRemaining"` // ms
	Counts        PopulationCounts   `json:"counts"`
}

// StageChangeMsg announces a transition
type StageChangeMsg struct {
	Stage    Stage `json:"stage"`
	Duration int64 `json:"duration"` // ms, 0 = until a guard holds
}

// RosterMsg carries the two fighters and the referee. Used by
// fightersSelected, preCeremonyStart and matchStart.
type RosterMsg struct {
	Fighter1 *ParticipantState `json:"fighter1"`
	Fighter2 *ParticipantState `json:"fighter2"`
	Referee  *ParticipantState `json:"referee"`
	Duration int64             `json:"duration,omitempty"`
}

// SponsorBannerMsg asks clients to show a sponsor overlay
type SponsorBannerMsg struct {
	Sponsor  string `json:"sponsor"`
	Duration int64  `json:"duration"` // ms
}

// PlayerMovedMsg is broadcast for every position change
type PlayerMovedMsg struct {
	ID       string  `json:"id" msgpack:"id"`
	Position Vec3    `json:"position" msgpack:"position"`
	Rotation float64 `json:"rotation" msgpack:"rotation"`
}

// MatchEndMsg announces a decided round
type MatchEndMsg struct {
	WinnerID   string `json:"winnerId"`
	LoserID    string `json:"loserId"`
	WinnerName string `json:"winnerName,omitempty"`
	LoserName  string `json:"loserName,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// MatchDrawMsg announces a round that ran out of time
type MatchDrawMsg struct {
	FighterIDs []string `json:"fighterIds"`
	Reason     string   `json:"reason"`
}

// RoleChangedMsg reports a participant moving between buckets
type RoleChangedMsg struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// ErrorMsg sends error to client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// RegisterMsg is sent by client to create an account
type RegisterMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginMsg is sent by client to log in
type LoginMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthMsg resumes a session with a saved token
type AuthMsg struct {
	Token string `json:"token"`
}

// AuthOKMsg confirms authentication
type AuthOKMsg struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	AccountID int64  `json:"accountId"`
}

// ProfileDataMsg is the response to a profile request
type ProfileDataMsg struct {
	Username string `json:"username"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
	Draws    int    `json:"draws"`
	Matches  int    `json:"matches"`
	Refereed int    `json:"refereed"`
}
