package main

import (
	"context"
)

// retryPending drives non-terminal blockchain transactions towards a
// terminal state.
func (cli *commandLine) retryPending(limit int) error {
	confirmed, err := cli.ledgerSvc.RetrySweep(context.Background(), limit)
	if err != nil {
		return err
	}
	logger.Printf("retried pending transactions: %d confirmed\n", confirmed)
	return nil
}
