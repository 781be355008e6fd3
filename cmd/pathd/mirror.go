package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"voxelpath.ai/internal/persistence/mirror"
)

// buildMirror returns nil when VP_MIRROR is off.
func buildMirror(dataDir string, logger *log.Logger) (*mirror.Mirror, error) {
	if !envBool("VP_MIRROR", false) {
		return nil, nil
	}
	cfg := mirror.Config{
		Endpoint:        strings.TrimSpace(os.Getenv("VP_MIRROR_ENDPOINT")),
		Bucket:          strings.TrimSpace(os.Getenv("VP_MIRROR_BUCKET")),
		Region:          strings.TrimSpace(os.Getenv("VP_MIRROR_REGION")),
		AccessKeyID:     strings.TrimSpace(os.Getenv("VP_MIRROR_ACCESS_KEY_ID")),
		SecretAccessKey: strings.TrimSpace(os.Getenv("VP_MIRROR_SECRET_ACCESS_KEY")),
	}
	c, err := mirror.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("VP_MIRROR=true: %w", err)
	}
	return mirror.New(c, dataDir, os.Getenv("VP_MIRROR_PREFIX"), envInt("VP_MIRROR_WORKERS", 2), logger), nil
}

func envInt(name string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(name)))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
