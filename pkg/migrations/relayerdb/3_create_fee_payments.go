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
		log.Println("creating fee_payments table...")
		if err := mghelper.CreateSchema(ctx, db, &depositstore.FeePaymentDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &depositstore.FeePaymentDao{}, "scanner_name")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping fee_payments table...")
		return mghelper.DropTables(ctx, db, &depositstore.FeePaymentDao{})
	})
}
