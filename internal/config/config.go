package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		TelegramAPIToken string   `env:"TOKEN,required"`
		DefaultLanguage  string   `env:"LANG,default=en"`
		EnabledHandlers  []string `env:"HANDLERS,default=admin,jury"`
		LogLevel         int      `env:"LOG_LEVEL,default=4"`
		DotPath          string   `env:"DOT_PATH,default=~/.jurybot"`
		MetricsListen    string   `env:"METRICS_LISTEN,default=:2112"`
		OwnerIDs         []int64  `env:"OWNER_IDS"`
		Jury             Jury
	}

	// Jury holds the global defaults applied to every chat that has no
	// persisted override for the corresponding field.
	Jury struct {
		MinParticipationRatio float64       `env:"JURY_MIN_PARTICIPATION_RATIO,default=0.05"`
		MinParticipationCount int           `env:"JURY_MIN_PARTICIPATION_COUNT,default=5"`
		ApprovalRatio         float64       `env:"JURY_APPROVAL_RATIO,default=0.6"`
		QuorumStrategy        string        `env:"JURY_QUORUM_STRATEGY,default=ratio_and_count"`
		ActionOnConfirm       string        `env:"JURY_ACTION_ON_CONFIRM,default=ban"`
		MuteDuration          time.Duration `env:"JURY_MUTE_DURATION,default=1h"`
		BlacklistEnabled      bool          `env:"JURY_BLACKLIST_ENABLED,default=true"`
		VoteTimeout           time.Duration `env:"JURY_VOTE_TIMEOUT,default=4h"`
		AllowVoteRetract      bool          `env:"JURY_ALLOW_VOTE_RETRACT,default=true"`
		MaxCasesPerUserHour   int           `env:"JURY_MAX_CASES_PER_USER_HOUR,default=3"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		cfg := &Config{}
		envcfg := envconfig.Config{
			Lookuper: envconfig.PrefixLookuper("JB_", envconfig.OsLookuper()),
			Target:   cfg,
		}
		if err := envconfig.ProcessWith(context.Background(), &envcfg); err != nil {
			globalErr = fmt.Errorf("process env config: %w", err)
			return
		}
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}
