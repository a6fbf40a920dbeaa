package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ephesafe/ephesafed/internal/config"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

const timeout = 10 * time.Second

var (
	urlFlag = &cli.StringFlag{
		Name:  "url",
		Usage: "the url where to reach the ephesafed server",
		Value: fmt.Sprintf("http://127.0.0.1:%d", config.DefaultPort),
	}
	fromFlag = &cli.StringFlag{
		Name:     "from",
		Usage:    "the caller address",
		Required: true,
	}
)

var infoCmd = &cli.Command{
	Name:  "info",
	Usage: "Show the registry counters and pause state",
	Flags: []cli.Flag{urlFlag},
	Action: func(c *cli.Context) error {
		body, err := getJSON(serverURL(c) + "/v1/admin/info")
		if err != nil {
			return err
		}
		fmt.Println(body)
		return nil
	},
}

var pauseCmd = &cli.Command{
	Name:  "pause",
	Usage: "Pause the registry",
	Flags: []cli.Flag{urlFlag, fromFlag},
	Action: func(c *cli.Context) error {
		body, err := postJSON(
			serverURL(c)+"/v1/admin/pause",
			map[string]string{"from": c.String(fromFlag.Name)},
		)
		if err != nil {
			return err
		}
		fmt.Println(body)
		return nil
	},
}

var unpauseCmd = &cli.Command{
	Name:  "unpause",
	Usage: "Unpause the registry",
	Flags: []cli.Flag{urlFlag, fromFlag},
	Action: func(c *cli.Context) error {
		body, err := postJSON(
			serverURL(c)+"/v1/admin/unpause",
			map[string]string{"from": c.String(fromFlag.Name)},
		)
		if err != nil {
			return err
		}
		fmt.Println(body)
		return nil
	},
}

func serverURL(c *cli.Context) string {
	if url := viper.GetString("url"); url != "" && !c.IsSet(urlFlag.Name) {
		return url
	}
	return c.String(urlFlag.Name)
}

func getJSON(url string) (string, error) {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(url)
	if err != nil {
		return "", err
	}
	// nolint
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s", buf)
	}
	return string(buf), nil
}

func postJSON(url string, payload any) (string, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	// nolint
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s", body)
	}
	return string(body), nil
}
