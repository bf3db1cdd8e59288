package relayerdb

import (
	"context"
	"log"

	"github.com/chainsafe/glitch-bridge/pkg/depositstore"
	mghelper "github.com/chainsafe/glitch-bridge/pkg/pgutil/migrations"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating scan_states table...")
		return mghelper.CreateSchema(ctx, db, &depositstore.ScanStateDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping scan_states table...")
		return mghelper.DropTables(ctx, db, &depositstore.ScanStateDao{})
	})
}
