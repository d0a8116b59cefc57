package royale

// Clash Royale REST paths, relative to the configured base URL.
// All paths are consolidated here so an upstream endpoint change touches a single file.
const (
	clanPath             = "/clans/%s"
	clanMembersPath      = "/clans/%s/members"
	currentRiverRacePath = "/clans/%s/currentriverrace"
	riverRaceLogPath     = "/clans/%s/riverracelog"
	playerPath           = "/players/%s"
)
