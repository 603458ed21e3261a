// cmd/status.go

package main

import (
	"encoding/json"
	"fmt"

	"TierBuf/pkg/version"

	"github.com/urfave/cli/v2"
)

type sections struct {
	Version string
	Setting *storeConf
	Tiers   []string
}

func printJson(v interface{}) {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Fatalf("json: %s", err)
	}
	fmt.Println(string(output))
}

func status(c *cli.Context) error {
	conf, t := setup(c)
	defer t.Close()
	var names []string
	for _, s := range t.Tiers() {
		names = append(names, s.Name())
	}
	conf.removeSecret()
	printJson(&sections{version.Version(), conf, names})
	return nil
}

func statusFlags() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "show the effective configuration and tiers",
		Action: status,
		Flags:  storageFlags(),
	}
}
