package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	TTL     string `envconfig:"CONVERSATION_TTL" default:"24h"`
	History struct {
		MaxTurns int `envconfig:"CONVERSATION_HISTORY_MAX_TURNS" default:"12"`
	}
}

type ClassifierModelConfig struct {
	Model       string  `envconfig:"CLASSIFIER_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"CLASSIFIER_MAX_TOKENS" default:"1000"`
	Temperature float32 `envconfig:"CLASSIFIER_TEMPERATURE" default:"0.0"`
}

type HandlerModelConfig struct {
	Model       string  `envconfig:"HANDLER_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"HANDLER_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"HANDLER_TEMPERATURE" default:"0.2"`
}

// CompPlanConfig carries the two fixed compensation plan constants. The
// commission rate is always derived in code as OnTargetIncentive / AnnualQuota.
type CompPlanConfig struct {
	OnTargetIncentive float64 `envconfig:"COMP_PLAN_ON_TARGET_INCENTIVE" default:"100000"`
	AnnualQuota       float64 `envconfig:"COMP_PLAN_ANNUAL_QUOTA" default:"2000000"`
}

// Rate returns the deterministic commission rate.
func (c CompPlanConfig) Rate() float64 {
	if c.AnnualQuota == 0 {
		return 0
	}
	return c.OnTargetIncentive / c.AnnualQuota
}

type SupportConfig struct {
	FromEmail string `envconfig:"SUPPORT_FROM_EMAIL" default:"salescomp-agent@example.com"`
	TeamEmail string `envconfig:"SUPPORT_TEAM_EMAIL" default:"salescomp-support@example.com"`
}

// ContestConfig locates the intake form URL resource. The file is read once
// at startup; absence is a startup error, never a per-request one.
type ContestConfig struct {
	FormURLFile string `envconfig:"CONTEST_FORM_URL_FILE" default:"contesturl.txt"`
}

// RuntimeConfig bounds every external call made while processing a turn.
type RuntimeConfig struct {
	TurnTimeout       time.Duration `envconfig:"TURN_TIMEOUT" default:"60s"`
	ModelMaxAttempts  int           `envconfig:"MODEL_MAX_ATTEMPTS" default:"3"`
	ModelRetryBackoff time.Duration `envconfig:"MODEL_RETRY_BACKOFF" default:"500ms"`
}
