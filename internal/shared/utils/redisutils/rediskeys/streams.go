package rediskeys

import (
	"fmt"

	"github.com/bkohler93/thavalon-backend/pkg/uuidstring"
)

const (
	lobbyStream  = "lobby"
	playerStream = "player"
)

// LobbyServerMessageStream carries every client request bound for the lobby.
var LobbyServerMessageStream = fmt.Sprintf("%s:server_message", lobbyStream)

var LobbyServerMessageCGroup = fmt.Sprintf("%s:server_message:cgroup", lobbyStream)

// PlayerClientMessageStream carries serialized responses for one player.
func PlayerClientMessageStream(playerID uuidstring.ID) string {
	return fmt.Sprintf("%s:client_message:%s", playerStream, playerID)
}

func PlayerClientMessageCGroup(playerID uuidstring.ID) string {
	return fmt.Sprintf("%s:client_message:cgroup:%s", playerStream, playerID)
}

func LobbyPlayersList(gameID uuidstring.ID) string {
	return fmt.Sprintf("%s:%s:players", lobbyStream, gameID)
}

func LobbyNamesHash(gameID uuidstring.ID) string {
	return fmt.Sprintf("%s:%s:names", lobbyStream, gameID)
}

func LobbyStartedKey(gameID uuidstring.ID) string {
	return fmt.Sprintf("%s:%s:started", lobbyStream, gameID)
}

// PlayerClientMessageStreamPattern matches every player's outbound stream.
var PlayerClientMessageStreamPattern = fmt.Sprintf("%s:client_message:*", playerStream)

// LobbyGameState holds the running game once the lobby has started it.
func LobbyGameState(gameID uuidstring.ID) string {
	return fmt.Sprintf("%s:%s:state", lobbyStream, gameID)
}
