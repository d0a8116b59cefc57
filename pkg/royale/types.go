package royale

// Wire shapes for the Clash Royale REST responses. Only the fields the
// tracker consumes are decoded; everything else upstream sends is ignored.
// Counters use int64 on the wire so negative values can be detected and
// rejected during decoding instead of wrapping around.

type riverRaceResponse struct {
	State        string     `json:"state"`
	SeasonID     int64      `json:"seasonId"`
	SectionIndex int64      `json:"sectionIndex"`
	PeriodIndex  int64      `json:"periodIndex"`
	PeriodType   string     `json:"periodType"`
	Clan         raceClan   `json:"clan"`
	Clans        []raceClan `json:"clans"`
}

type raceClan struct {
	Tag          string            `json:"tag"`
	Name         string            `json:"name"`
	Fame         int64             `json:"fame"`
	RepairPoints int64             `json:"repairPoints"`
	Rank         int64             `json:"rank"`
	Participants []raceParticipant `json:"participants"`
}

// raceParticipant deliberately omits the upstream decksUsedToday field:
// the daily delta is derived from consecutive observations, never trusted
// from the API.
type raceParticipant struct {
	Tag          string `json:"tag"`
	Name         string `json:"name"`
	Fame         int64  `json:"fame"`
	RepairPoints int64  `json:"repairPoints"`
	BoatAttacks  int64  `json:"boatAttacks"`
	DecksUsed    int64  `json:"decksUsed"`
}

type riverRaceLogResponse struct {
	Items []riverRaceLogItem `json:"items"`
}

// riverRaceLogItem is one finished week in the race log. IsColosseum is a
// pointer so an explicitly absent flag can be told apart from false and
// resolved from observed history instead.
type riverRaceLogItem struct {
	SeasonID     int64         `json:"seasonId"`
	SectionIndex int64         `json:"sectionIndex"`
	CreatedDate  string        `json:"createdDate"`
	IsColosseum  *bool         `json:"isColosseum"`
	Standings    []logStanding `json:"standings"`
}

type logStanding struct {
	Rank         int64    `json:"rank"`
	TrophyChange int64    `json:"trophyChange"`
	Clan         raceClan `json:"clan"`
}

type memberListResponse struct {
	Items []clanMember `json:"items"`
}

type clanMember struct {
	Tag               string `json:"tag"`
	Name              string `json:"name"`
	Role              string `json:"role"`
	ExpLevel          int64  `json:"expLevel"`
	Trophies          int64  `json:"trophies"`
	ClanRank          int64  `json:"clanRank"`
	Donations         int64  `json:"donations"`
	DonationsReceived int64  `json:"donationsReceived"`
	LastSeen          string `json:"lastSeen"`
}
