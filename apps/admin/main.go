package main

import (
	"log"
	"os"
	"time"

	"github.com/trezcool/proctor/core"
	"github.com/trezcool/proctor/storage/database"
	sqlxrepos "github.com/trezcool/proctor/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	cli := commandLine{
		conf:    conf,
		in:      os.Stdin,
		out:     os.Stdout,
		nowFunc: time.Now,
	}

	if needsDB(os.Args) {
		if !conf.Database.Enabled() {
			logger.Fatal("no archive database configured")
		}
		errAndDie(database.CreateIfNotExist(conf))
		db, err := database.Open(conf)
		errAndDie(err)
		defer db.Close()

		cli.db = db
		cli.archive = sqlxrepos.NewArchiveRepository(db)
	}

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func needsDB(args []string) bool {
	if len(args) < 2 {
		return false
	}
	switch args[1] {
	case "migrate", "rooms", "incidents", "prune":
		return true
	}
	return false
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
