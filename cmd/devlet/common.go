package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/jingkaihe/devlet/pkg/dev"
	"github.com/jingkaihe/devlet/pkg/store"
	"github.com/jingkaihe/devlet/pkg/tools"
)

// newState builds the tool state rooted at dir, "." meaning the working directory.
func newState(v *viper.Viper, dir string) (*tools.BasicState, error) {
	if dir == "" {
		dir = "."
	}
	root, err := store.NewOS().Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid target directory %s", dir)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("%s is not a directory", root)
	}
	return tools.NewBasicState(
		tools.WithStore(store.NewOS(store.WithBaseDir(root))),
		tools.WithBackup(v.GetBool("backup")),
		tools.WithCreateIfMissing(v.GetBool("create_if_missing")),
	), nil
}

func devConfig(v *viper.Viper) (dev.Config, error) {
	var config dev.Config
	if err := v.Unmarshal(&config); err != nil {
		return config, errors.Wrap(err, "failed to unmarshal configuration")
	}
	return config, nil
}

// readInput joins args, or reads stdin when it is piped. Args and piped
// input together are joined with a newline.
func readInput(args []string, stdin io.Reader, piped bool) (string, error) {
	text := strings.Join(args, " ")
	if !piped {
		return text, nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", errors.Wrap(err, "failed to read stdin")
	}
	if text == "" {
		return string(b), nil
	}
	return text + "\n" + string(b), nil
}

func stdinPiped() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice == 0
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode output")
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
