package depositstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/chainsafe/glitch-bridge/pkg/deposit"
)

// ScanStateDao maps to the 'scan_states' table, one row per monitored network.
type ScanStateDao struct {
	bun.BaseModel    `bun:"table:scan_states,alias:ss"`
	Name             string    `bun:"name,pk,type:varchar(128)"`
	Network          string    `bun:"network,notnull,type:varchar(128)"`
	MonitorAddress   string    `bun:"monitor_address,notnull,type:varchar(42)"`
	LastScannedBlock int64     `bun:"last_scanned_block,notnull,default:0"`
	AccumulatedFee   string    `bun:"accumulated_fee,notnull,type:numeric(78,0),default:0"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// DepositDao maps to the 'deposits' table.
type DepositDao struct {
	bun.BaseModel         `bun:"table:deposits,alias:d"`
	ID                    int64     `bun:"id,pk,autoincrement"`
	ScannerName           string    `bun:"scanner_name,notnull,type:varchar(128)"`
	SourceTxHash          string    `bun:"source_tx_hash,notnull,unique,type:varchar(66)"`
	SourceFromAddress     string    `bun:"source_from_address,notnull,type:varchar(42)"`
	SourceBlockNumber     int64     `bun:"source_block_number,notnull"`
	Amount                string    `bun:"amount,notnull,type:varchar(80)"`
	DestinationAddress    string    `bun:"destination_address,notnull,type:text"`
	State                 string    `bun:"state,notnull,type:varchar(16)"`
	DestinationTxHash     *string   `bun:"destination_tx_hash,type:varchar(66)"`
	NetworkFeeAmount      *string   `bun:"network_fee_amount,type:numeric(78,0)"`
	BusinessFeeAmount     *string   `bun:"business_fee_amount,type:numeric(78,0)"`
	BusinessFeePercentage *string   `bun:"business_fee_percentage,type:varchar(16)"`
	ErrorMessage          *string   `bun:"error_message,type:text"`
	CreatedAt             time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt             time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// FeePaymentDao maps to the append-only 'fee_payments' table.
type FeePaymentDao struct {
	bun.BaseModel     `bun:"table:fee_payments,alias:fp"`
	ID                int64     `bun:"id,pk,autoincrement"`
	ScannerName       string    `bun:"scanner_name,notnull,type:varchar(128)"`
	DestinationTxHash string    `bun:"destination_tx_hash,notnull,type:varchar(66)"`
	Amount            string    `bun:"amount,notnull,type:numeric(78,0)"`
	PaidAt            time.Time `bun:"paid_at,notnull,default:current_timestamp"`
}

func toDepositDao(d *deposit.Deposit) *DepositDao {
	state := d.State
	if state == "" {
		state = deposit.StateToProcess
	}
	return &DepositDao{
		ScannerName:        d.ScannerName,
		SourceTxHash:       d.SourceTxHash,
		SourceFromAddress:  d.SourceFromAddress,
		SourceBlockNumber:  int64(d.SourceBlockNumber),
		Amount:             d.Amount,
		DestinationAddress: d.DestinationAddress,
		State:              string(state),
	}
}

func toDeposit(dao *DepositDao) *deposit.Deposit {
	d := &deposit.Deposit{
		ID:                 dao.ID,
		ScannerName:        dao.ScannerName,
		SourceTxHash:       dao.SourceTxHash,
		SourceFromAddress:  dao.SourceFromAddress,
		SourceBlockNumber:  uint64(dao.SourceBlockNumber),
		Amount:             dao.Amount,
		DestinationAddress: dao.DestinationAddress,
		State:              deposit.State(dao.State),
		CreatedAt:          dao.CreatedAt,
		UpdatedAt:          dao.UpdatedAt,
	}
	if dao.DestinationTxHash != nil {
		d.DestinationTxHash = *dao.DestinationTxHash
	}
	if dao.NetworkFeeAmount != nil {
		d.NetworkFeeAmount = *dao.NetworkFeeAmount
	}
	if dao.BusinessFeeAmount != nil {
		d.BusinessFeeAmount = *dao.BusinessFeeAmount
	}
	if dao.BusinessFeePercentage != nil {
		d.BusinessFeePercentage = *dao.BusinessFeePercentage
	}
	if dao.ErrorMessage != nil {
		d.ErrorMessage = *dao.ErrorMessage
	}
	return d
}

func toDeposits(daos []DepositDao) []*deposit.Deposit {
	out := make([]*deposit.Deposit, len(daos))
	for i := range daos {
		out[i] = toDeposit(&daos[i])
	}
	return out
}

func toScanState(dao *ScanStateDao) *deposit.ScanState {
	return &deposit.ScanState{
		Name:             dao.Name,
		Network:          dao.Network,
		MonitorAddress:   dao.MonitorAddress,
		LastScannedBlock: uint64(dao.LastScannedBlock),
		AccumulatedFee:   dao.AccumulatedFee,
		UpdatedAt:        dao.UpdatedAt,
	}
}

func toFeePayment(dao *FeePaymentDao) *deposit.FeePayment {
	return &deposit.FeePayment{
		ID:                dao.ID,
		ScannerName:       dao.ScannerName,
		DestinationTxHash: dao.DestinationTxHash,
		Amount:            dao.Amount,
		Time:              dao.PaidAt,
	}
}
