package rooms

type createRoomResponse struct {
	RoomCode string `json:"room_code"`
	WSURL    string `json:"ws_url"`
}

type joinRoomResponse struct {
	Status   string `json:"status"`
	RoomCode string `json:"room_code"`
	WSURL    string `json:"ws_url"`
}
