package observerproto

// Version is the observer protocol version.
const Version = "1.0"

// Client -> Server. First message on the observer WS connection; it can be
// re-sent to change settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// IncludeAgents adds every agent's position and status to each TICK.
	IncludeAgents bool `json:"include_agents,omitempty"`
	// EveryTicks thins the stream to one TICK per N ticks (default 1).
	EveryTicks int `json:"every_ticks,omitempty"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string    `json:"protocol_version"`
	RunID           string    `json:"run_id"`
	Tick            uint64    `json:"tick"`
	RunParams       RunParams `json:"run_params"`
	Grid            GridBlob  `json:"grid"`
	Destinations    [][2]int  `json:"destinations"`
	FieldSource     string    `json:"field_source"`
}

type RunParams struct {
	MapSize       int     `json:"map_size"`
	TickRateHz    int     `json:"tick_rate_hz"`
	Seed          int64   `json:"seed"`
	Population    int     `json:"population"`
	InfectionProb float64 `json:"infection_prob"`
	AgentRadius   float64 `json:"agent_radius"`
}

// GridBlob is the row-major occupancy grid (1 = blocked).
type GridBlob struct {
	Size     int    `json:"size"`
	Encoding string `json:"encoding"`
	Data     string `json:"data"`
}

// Server -> Client. Sent every subscribed tick.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Susceptible   int `json:"susceptible"`
	Infected      int `json:"infected"`
	Infectious    int `json:"infectious"`
	Removed       int `json:"removed"`
	NewInfections int `json:"new_infections"`

	Agents []AgentState `json:"agents,omitempty"`
}

type AgentState struct {
	ID     int        `json:"id"`
	Pos    [2]float64 `json:"pos"`
	Status string     `json:"status"`
	Dest   int        `json:"dest"`
}
