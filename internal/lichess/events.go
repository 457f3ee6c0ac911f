package lichess

// Account event types.
const (
	EventChallenge         = "challenge"
	EventChallengeCanceled = "challengeCanceled"
	EventChallengeDeclined = "challengeDeclined"
	EventGameStart         = "gameStart"
	EventGameFinish        = "gameFinish"
)

// Game event types.
const (
	EventGameFull     = "gameFull"
	EventGameState    = "gameState"
	EventChatLine     = "chatLine"
	EventOpponentGone = "opponentGone"
)

// Chat rooms.
const (
	RoomPlayer    = "player"
	RoomSpectator = "spectator"
)

// AccountEvent is one line of the account event stream.
type AccountEvent struct {
	Type      string     `json:"type"`
	Challenge *Challenge `json:"challenge,omitempty"`
	Game      *GameRef   `json:"game,omitempty"`
}

// Challenge is an incoming challenge.
type Challenge struct {
	ID          string      `json:"id"`
	Status      string      `json:"status"`
	Rated       bool        `json:"rated"`
	Color       string      `json:"color"`
	Speed       string      `json:"speed"`
	Variant     Variant     `json:"variant"`
	TimeControl TimeControl `json:"timeControl"`
	Challenger  *User       `json:"challenger"`
	DestUser    *User       `json:"destUser"`
}

// ChallengerName returns the challenger's name, or "?".
func (c *Challenge) ChallengerName() string {
	if c.Challenger == nil || c.Challenger.Name == "" {
		return "?"
	}
	return c.Challenger.Name
}

// Variant of a game or challenge.
type Variant struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// TimeControl of a challenge. Limit and Increment are seconds.
type TimeControl struct {
	Type      string `json:"type"`
	Limit     int    `json:"limit"`
	Increment int    `json:"increment"`
	Show      string `json:"show"`
}

// User is a player summary.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Title  string `json:"title"`
	Rating int    `json:"rating"`
}

// GameRef identifies a started or finished game.
type GameRef struct {
	ID     string `json:"id"`
	GameID string `json:"gameId"`
}

// Identifier returns the game id regardless of which field carried it.
func (g *GameRef) Identifier() string {
	if g.GameID != "" {
		return g.GameID
	}
	return g.ID
}

// Player is one side of a game.
type Player struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Title   string `json:"title"`
	Rating  int    `json:"rating"`
	AILevel int    `json:"aiLevel"`
}

// GameState is the mutable part of a game. Times are milliseconds.
type GameState struct {
	Moves  string `json:"moves"`
	WTime  int    `json:"wtime"`
	BTime  int    `json:"btime"`
	WInc   int    `json:"winc"`
	BInc   int    `json:"binc"`
	Status string `json:"status"`
	Winner string `json:"winner,omitempty"`
}

// GameEvent is one line of a game stream. gameState lines populate the
// embedded GameState; gameFull carries the initial state in State.
type GameEvent struct {
	Type string `json:"type"`

	// gameFull
	ID         string     `json:"id"`
	Variant    Variant    `json:"variant"`
	White      Player     `json:"white"`
	Black      Player     `json:"black"`
	InitialFEN string     `json:"initialFen"`
	State      *GameState `json:"state,omitempty"`

	// gameState
	GameState

	// chatLine
	Username string `json:"username"`
	Text     string `json:"text"`
	Room     string `json:"room"`
}
