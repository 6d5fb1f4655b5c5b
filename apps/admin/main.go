package main

import (
	"context"
	"log"
	"os"

	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/account"
	"github.com/trezcool/jifunze/services/cache"
	emailsvc "github.com/trezcool/jifunze/services/email"
	"github.com/trezcool/jifunze/storage/database"
	sqlxrepos "github.com/trezcool/jifunze/storage/database/sqlx"
)

var logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

func main() {
	os.Exit(run())
}

func run() int {
	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Printf("opening database: %v", err)
		return 1
	}
	defer func() { _ = db.Close() }()
	if err = db.PingContext(context.Background()); err != nil {
		logger.Printf("pinging database: %v", err)
		return 1
	}

	// reset codes and mails are never used by the CLI
	accSvc := account.NewService(
		sqlxrepos.NewAccountRepository(db),
		cache.NewMemoryStore(),
		emailsvc.NewConsoleService(conf),
		conf,
	)

	// start CLI
	cli := commandLine{
		db:       db.DB,
		accounts: accSvc,
	}
	if err = cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		return 1
	}
	return 0
}
