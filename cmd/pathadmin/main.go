package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	args := os.Args[2:]
	switch os.Args[1] {
	case "db":
		dbCmd(args)
	case "status":
		getCmd("status", "/v1/status", args)
	case "path":
		getCmd("path", "/v1/path", args)
	case "scene":
		sceneCmd(args)
	case "cancel":
		cancelCmd(args)
	case "hazard":
		hazardCmd(args)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: pathadmin db|status|path|scene|cancel|hazard [flags]")
}

func baseURL(fs *flag.FlagSet) *string {
	return fs.String("url", "http://127.0.0.1:8080", "pathd base url")
}

func do(method, u string, body io.Reader) {
	req, err := http.NewRequest(method, u, body)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(2)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}

func join(base, path string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + path
}

func getCmd(name, path string, args []string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	u := baseURL(fs)
	_ = fs.Parse(args)
	do(http.MethodGet, join(*u, path), nil)
}

func sceneCmd(args []string) {
	fs := flag.NewFlagSet("scene", flag.ExitOnError)
	u := baseURL(fs)
	_ = fs.Parse(args)
	do(http.MethodPost, join(*u, "/admin/v1/scene"), nil)
}

func cancelCmd(args []string) {
	fs := flag.NewFlagSet("cancel", flag.ExitOnError)
	u := baseURL(fs)
	force := fs.Bool("force", false, "cancel even mid-movement")
	_ = fs.Parse(args)
	target := join(*u, "/admin/v1/cancel")
	if *force {
		target += "?force=1"
	}
	do(http.MethodPost, target, nil)
}

func hazardCmd(args []string) {
	fs := flag.NewFlagSet("hazard", flag.ExitOnError)
	u := baseURL(fs)
	id := fs.String("id", "", "hazard id (set, rm)")
	at := fs.String("at", "", "center x,y,z (set)")
	radius := fs.Int("radius", 4, "radius in blocks (set)")
	coef := fs.Float64("coefficient", 2, "cost multiplier inside the zone (set)")
	_ = fs.Parse(args)

	op := "list"
	if fs.NArg() > 0 {
		op = fs.Arg(0)
	}
	target := join(*u, "/admin/v1/hazards")
	switch op {
	case "list":
		do(http.MethodGet, target, nil)
	case "set":
		var c [3]int
		if _, err := fmt.Sscanf(*at, "%d,%d,%d", &c[0], &c[1], &c[2]); err != nil || *id == "" {
			fmt.Fprintln(os.Stderr, "hazard set needs -id and -at x,y,z")
			os.Exit(2)
		}
		b, _ := json.Marshal(map[string]any{"id": *id, "center": c, "radius": *radius, "coefficient": *coef})
		do(http.MethodPost, target, strings.NewReader(string(b)))
	case "rm":
		if *id == "" {
			fmt.Fprintln(os.Stderr, "hazard rm needs -id")
			os.Exit(2)
		}
		do(http.MethodDelete, target+"?id="+url.QueryEscape(*id), nil)
	default:
		fmt.Fprintln(os.Stderr, "hazard: unknown op", op)
		os.Exit(2)
	}
}
