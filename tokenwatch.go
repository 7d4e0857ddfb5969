// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package main

import (
	"flag"
	"fmt"
	"log"

	"tokenwatch/internal/cli"
	"tokenwatch/internal/config"
	"tokenwatch/internal/handler"
	"tokenwatch/internal/svc"

	"github.com/zeromicro/go-zero/rest"
)

var configFile = flag.String("f", "etc/tokenwatch.yaml", "the config file")

func main() {
	flag.Parse()

	cfg := config.MustLoad(*configFile)
	cli.LogConfigSummary(cfg)

	server := rest.MustNewServer(cfg.RestConf)
	defer server.Stop()

	ctx := svc.NewServiceContext(cfg)
	handler.RegisterHandlers(server, ctx)

	if err := ctx.Engine.Open(); err != nil {
		log.Fatalf("Failed to open watch engine: %v", err)
	}
	defer ctx.Engine.Close()

	fmt.Printf("Starting server at %s:%d...\n", cfg.Host, cfg.Port)
	server.Start()
}
