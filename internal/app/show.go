package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// Show prints recent observations.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	repo, closeRepo, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	observations, err := repo.ListRecentObservations(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(observations) == 0 {
		fmt.Fprintln(os.Stdout, "no observations found")
		return nil
	}

	total, err := repo.CountObservations(ctx)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Observed (UTC)\tSeller\tSKU\tPrice\tStatus\tError\tURL")

	for _, obs := range observations {
		errMsg := ""
		if obs.Error != nil {
			errMsg = sanitizeInline(*obs.Error)
		}
		price := obs.PriceString()
		if price == "" {
			price = "-"
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			obs.ObservedAt.UTC().Format(time.RFC3339),
			obs.Seller,
			obs.SKU,
			price,
			obs.Status,
			errMsg,
			obs.URL,
		)
	}

	writer.Flush()
	fmt.Fprintf(os.Stdout, "showing %d of %d observations\n", len(observations), total)
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
