package cfgloader

import (
	"gopkg.in/yaml.v3"

	"github.com/rise-and-shine/errnotify/mask"
	"github.com/rise-and-shine/errnotify/observability/logger"
)

func printConfig(config any) {
	out, err := yaml.Marshal(mask.StructToOrdMap(config))
	if err != nil {
		logger.With("error", err.Error()).Warn("[cfgloader]: failed to marshal config")
		return
	}
	logger.Named("cfgloader").Infof("loaded config:\n%s", string(out))
}
