package llm

import (
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	llmtypes "github.com/jingkaihe/devlet/pkg/types/llm"
)

// GetConfigFromViper reads the model configuration, applies the active
// profile and resolves model aliases. A nil v reads the global viper.
func GetConfigFromViper(v *viper.Viper) (llmtypes.Config, error) {
	if v == nil {
		v = viper.GetViper()
	}

	var config llmtypes.Config
	if err := v.Unmarshal(&config); err != nil {
		return config, errors.Wrap(err, "failed to unmarshal configuration")
	}

	if profileName := activeProfile(v); profileName != "" {
		profile, ok := config.Profiles[profileName]
		if !ok {
			return config, errors.Errorf("profile %q is not defined", profileName)
		}
		if err := applyProfile(&config, profile); err != nil {
			return config, err
		}
	}

	if config.Retry.Attempts == 0 {
		config.Retry = llmtypes.DefaultRetryConfig
	}
	config.Model = resolveModelAlias(config.Model, config.Aliases)

	return config, nil
}

func activeProfile(v *viper.Viper) string {
	profile := v.GetString("profile")
	if profile == "default" {
		return ""
	}
	return profile
}

func applyProfile(config *llmtypes.Config, profile llmtypes.ProfileConfig) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           config,
		WeaklyTypedInput: true,
		ZeroFields:       false,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create profile decoder")
	}
	if err := decoder.Decode(map[string]any(profile)); err != nil {
		return errors.Wrap(err, "failed to apply profile")
	}
	return nil
}

func resolveModelAlias(model string, aliases map[string]string) string {
	if resolved, ok := aliases[model]; ok {
		return resolved
	}
	return model
}
