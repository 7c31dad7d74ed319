package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rafflepool/rafflepool/internal/config"
	"github.com/urfave/cli/v2"
)

// flags
var (
	urlFlag = &cli.StringFlag{
		Name:  "url",
		Usage: "address of the rafflepool daemon",
		Value: fmt.Sprintf("http://localhost:%d", config.DefaultPort),
	}
	afterFlag = &cli.Int64Flag{
		Name:  "after",
		Usage: "only list rounds opened at or after this unix timestamp",
	}
	beforeFlag = &cli.Int64Flag{
		Name:  "before",
		Usage: "only list rounds opened at or before this unix timestamp",
	}
)

// commands
var (
	statusCmd = &cli.Command{
		Name:   "status",
		Usage:  "Get the current round and its conclusion readiness",
		Action: statusAction,
		Flags:  []cli.Flag{urlFlag},
	}
	winnerCmd = &cli.Command{
		Name:   "winner",
		Usage:  "Get the outcome of the last concluded round",
		Action: winnerAction,
		Flags:  []cli.Flag{urlFlag},
	}
	roundsCmd = &cli.Command{
		Name:   "rounds",
		Usage:  "List round ids by opening time",
		Action: roundsAction,
		Flags:  []cli.Flag{urlFlag, afterFlag, beforeFlag},
	}
)

func statusAction(ctx *cli.Context) error {
	baseURL := ctx.String("url")

	url := fmt.Sprintf("%s/v1/round", baseURL)
	out, err := get(url)
	if err != nil {
		return err
	}

	fmt.Println(out)
	return nil
}

func winnerAction(ctx *cli.Context) error {
	baseURL := ctx.String("url")

	url := fmt.Sprintf("%s/v1/winner", baseURL)
	out, err := get(url)
	if err != nil {
		return err
	}

	fmt.Println(out)
	return nil
}

func roundsAction(ctx *cli.Context) error {
	baseURL := ctx.String("url")

	url := fmt.Sprintf("%s/v1/rounds", baseURL)
	if ctx.IsSet("after") || ctx.IsSet("before") {
		url = fmt.Sprintf(
			"%s?after=%d&before=%d", url, ctx.Int64("after"), ctx.Int64("before"),
		)
	}
	out, err := get(url)
	if err != nil {
		return err
	}

	fmt.Println(out)
	return nil
}

func get(url string) (string, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Add("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to get: %s", string(buf))
	}

	var pretty map[string]interface{}
	if err := json.Unmarshal(buf, &pretty); err != nil {
		return string(buf), nil
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return string(buf), nil
	}
	return string(out), nil
}
