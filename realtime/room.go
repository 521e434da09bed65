package realtime

import (
	"encoding/json"
	"strconv"

	"github.com/yeremiapane/gaming-portal/models"
)

type roomKind uint8

const (
	roomUser roomKind = iota + 1
	roomAdmins
)

// RoomID names a multicast group. Build it with UserRoom or use AdminRoom;
// the zero value is not a valid room.
type RoomID struct {
	kind   roomKind
	userID uint
}

// AdminRoom is shared by every connected staff channel.
var AdminRoom = RoomID{kind: roomAdmins}

// UserRoom holds every device of one end-user.
func UserRoom(userID uint) RoomID {
	return RoomID{kind: roomUser, userID: userID}
}

// RoomFor returns the room a principal joins on connect.
func RoomFor(p models.Principal) RoomID {
	if p.IsAdmin() {
		return AdminRoom
	}
	return UserRoom(p.ID)
}

func (r RoomID) String() string {
	switch r.kind {
	case roomUser:
		return "user:" + strconv.FormatUint(uint64(r.userID), 10)
	case roomAdmins:
		return "admins"
	}
	return ""
}

func (r RoomID) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}
