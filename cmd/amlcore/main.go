package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/insightdelivered/aml-statement-core/internal/api"
	"github.com/insightdelivered/aml-statement-core/internal/config"
	"github.com/insightdelivered/aml-statement-core/internal/memory"
	"github.com/insightdelivered/aml-statement-core/internal/pipeline"
	"github.com/insightdelivered/aml-statement-core/internal/store"
)

const version = "1.0.0"

func main() {
	caseFlag := flag.String("case", "", "Case name to analyze under (created if missing)")
	projectFlag := flag.String("project", "default", "Project name (created if missing)")
	rulesFlag := flag.String("rules", "", "Path to a rules YAML config (falls back to the built-in table)")
	dataDirDefault := "./data"
	if v := os.Getenv("AISTATE_DATA_DIR"); v != "" {
		dataDirDefault = v
	}
	dataDirFlag := flag.String("data-dir", dataDirDefault, "Directory holding the SQLite store (defaults to AISTATE_DATA_DIR)")
	serveFlag := flag.Bool("serve", false, "Start the HTTP API instead of running a one-shot CLI analysis")
	portFlag := flag.String("port", "8080", "Port for --serve")
	versionFlag := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `AML statement analysis engine

Usage:
  amlcore --case=<name> <statement.pdf> [statement2.pdf ...]
  amlcore --serve [--port=8080]

Flags:
`)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *versionFlag {
		fmt.Printf("amlcore v%s\n", version)
		return
	}

	db, err := store.Open(filepath.Join(*dataDirFlag, "aml.db"))
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	if err := db.Init(); err != nil {
		log.Fatalf("init schema: %v", err)
	}

	rulesCfg, rerr := config.Load(*rulesFlag)
	if rerr != nil && *rulesFlag != "" {
		log.Printf("rules config: %v (using built-in defaults)", rerr)
	}
	rulesStore := config.NewStore(rulesCfg)

	mem := memory.New()
	runner := pipeline.NewRunner(db, rulesStore, mem)

	if *serveFlag {
		serve(runner, db, *portFlag)
		return
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}
	if *caseFlag == "" {
		log.Fatal("--case is required in CLI mode")
	}

	userID, err := db.EnsureUser("operator@local", "Operator")
	if err != nil {
		log.Fatalf("ensure user: %v", err)
	}
	projectID, err := db.EnsureProject(userID, *projectFlag)
	if err != nil {
		log.Fatalf("ensure project: %v", err)
	}
	caseID, err := db.CreateCase(projectID, *caseFlag)
	if err != nil {
		log.Fatalf("create case: %v", err)
	}

	ctx := context.Background()
	for _, path := range flag.Args() {
		result, err := runner.Run(ctx, pipeline.Input{CaseID: caseID, FilePath: path})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			continue
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(result)
	}
}

func serve(runner *pipeline.Runner, db *store.DB, port string) {
	app := fiber.New(fiber.Config{
		AppName:   "AML Statement Core v" + version,
		BodyLimit: 32 * 1024 * 1024,
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{AllowOrigins: "*", AllowMethods: "GET,POST,OPTIONS"}))

	handler := api.NewHandler(runner, db)
	apiGroup := app.Group("/api")
	apiGroup.Get("/health", handler.HandleHealth)
	apiGroup.Post("/analyze", handler.HandleAnalyze)
	apiGroup.Post("/mapping/suggest", handler.HandleSuggestMapping)
	apiGroup.Post("/mapping/confirm", handler.HandleConfirmMapping)

	addr := ":" + port
	fmt.Printf("amlcore listening on %s\n", addr)
	log.Fatal(app.Listen(addr))
}
