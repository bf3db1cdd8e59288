package relayerdb

import (
	"context"
	"log"

	"github.com/chainsafe/glitch-bridge/pkg/depositstore"

	"github.com/uptrace/bun"
)

// Deposits created by 2_create_deposits already carry the column.
func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("adding deposits.network_fee_amount...")
		_, err := db.NewAddColumn().
			Model((*depositstore.DepositDao)(nil)).
			ColumnExpr("IF NOT EXISTS network_fee_amount NUMERIC(78,0)").
			Exec(ctx)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping deposits.network_fee_amount...")
		_, err := db.NewDropColumn().
			Model((*depositstore.DepositDao)(nil)).
			ColumnExpr("IF EXISTS network_fee_amount").
			Exec(ctx)
		return err
	})
}
