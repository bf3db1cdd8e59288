package relayerdb

import (
	"context"
	"log"

	"github.com/chainsafe/glitch-bridge/pkg/depositstore"
	mghelper "github.com/chainsafe/glitch-bridge/pkg/pgutil/migrations"

	"github.com/uptrace/bun"
)

var depositIndexColumns = []string{"scanner_name", "state", "source_from_address", "destination_address"}

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating deposits table...")
		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if err := mghelper.CreateSchema(ctx, tx, &depositstore.DepositDao{}); err != nil {
				return err
			}
			return mghelper.CreateModelIndexes(ctx, tx, &depositstore.DepositDao{}, depositIndexColumns...)
		})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping deposits table...")
		return mghelper.DropTables(ctx, db, &depositstore.DepositDao{})
	})
}
