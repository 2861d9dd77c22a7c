// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package databag

import (
	"fmt"

	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	spillCounter            otelmetric.Int64Counter
	spilledItemsCounter     otelmetric.Int64Counter
	compactionCounter       otelmetric.Int64Counter
	spillFileRemovedCounter otelmetric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/databag/pkg/databag")

	var err error
	spillCounter, err = meter.Int64Counter(
		"databag.spills",
		otelmetric.WithDescription("Number of times a data bag moved its in-memory buffer to a spill file"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create spills counter: %w", err))
	}

	spilledItemsCounter, err = meter.Int64Counter(
		"databag.spilled_items",
		otelmetric.WithDescription("Number of items written to spill files"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create spilled_items counter: %w", err))
	}

	compactionCounter, err = meter.Int64Counter(
		"databag.compactions",
		otelmetric.WithDescription("Number of pre-merge passes that folded spill files into one"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create compactions counter: %w", err))
	}

	spillFileRemovedCounter, err = meter.Int64Counter(
		"databag.spill_files_removed",
		otelmetric.WithDescription("Number of spill files deleted"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create spill_files_removed counter: %w", err))
	}
}
