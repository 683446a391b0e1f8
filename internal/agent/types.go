// Package agent implements the data-driven agent profile registry: rather
// than one Go type per supported coding agent, each agent is described by
// a bundled JSON profile naming how to recognize its transcripts and how
// to treat them (last_event_id fields, title-prefix rewriting). New agents
// are onboarded by adding a profile, not by writing code.
package agent

// TranscriptProfile is the transcript-handling portion of an agent
// profile's JSON document.
type TranscriptProfile struct {
	PathRegexes       []string          `json:"path_regexes"`
	LastEventIDFields []string          `json:"last_event_id_fields"`
	TitlePrefix       TitlePrefixConfig `json:"title_prefix"`
}

// TitlePrefixConfig controls whether and how a forked transcript's title
// field gets a "[Fork] "-style prefix rewritten into it.
type TitlePrefixConfig struct {
	Enabled  bool   `json:"enabled"`
	JSONPath string `json:"json_path"`
}

// Profile is one bundled agent description: its id, a human-readable
// display name, and the transcript-handling rules the rest of the system
// consults by id.
type Profile struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	Transcript  TranscriptProfile `json:"transcript"`
}
