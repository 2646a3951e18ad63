package network

// 入站消息
const (
	MsgTypeHeartbeat     = 1
	MsgTypeJoinRoom      = 101
	MsgTypeLeaveRoom     = 102
	MsgTypeStartGame     = 201
	MsgTypeNightAction   = 202
	MsgTypeVote          = 203
	MsgTypeHunterShoot   = 204
	MsgTypeBadgeTransfer = 205
	MsgTypeSpeechEnd     = 206
	MsgTypeHostPause     = 211
	MsgTypeHostResume    = 212
	MsgTypeHostForceSkip = 213
	MsgTypeDebugRestore  = 214
)

// 出站消息
const (
	MsgTypeRoomState      = 301
	MsgTypeGamePaused     = 302
	MsgTypeGameResumed    = 303
	MsgTypeSpeakerChange  = 304
	MsgTypeHostForcedSkip = 305
	MsgTypeJoined         = 306
)

// JoinRequest 加入房间，房间不存在时创建并以该玩家为主持人
type JoinRequest struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
	IsAI     bool   `json:"is_ai"`
}

// NightActionRequest 夜间行动
type NightActionRequest struct {
	Kind     string `json:"kind"`
	TargetID string `json:"target_id"`
}

// TargetRequest 投票/开枪/移交警徽共用的目标载荷
type TargetRequest struct {
	TargetID string `json:"target_id"`
}

// DebugRestoreRequest 调试恢复到白天讨论
type DebugRestoreRequest struct {
	SpeakerID string `json:"speaker_id"`
}
