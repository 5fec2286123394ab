package extraction

import (
	"context"
	"fmt"

	"github.com/synaptica-ai/warehouse-etl/pkg/common/config"
	"github.com/synaptica-ai/warehouse-etl/pkg/common/logger"
	"github.com/synaptica-ai/warehouse-etl/pkg/normalizer"
)

// Source reads every row of one physical table from the row store.
type Source interface {
	FetchTable(ctx context.Context, name string) ([]map[string]interface{}, error)
}

// Extract fetches the eight logical source tables. A table that fails to load
// is logged and left out of the result, and its logical name is returned in
// missing; the other tables are still fetched.
func Extract(ctx context.Context, src Source, tables config.SourceTables) (normalizer.RawTables, []string, error) {
	physical := map[string]string{
		normalizer.TablePatient:       tables.Patient,
		normalizer.TableDoctor:        tables.Doctor,
		normalizer.TableSpeciality:    tables.Speciality,
		normalizer.TableAdmission:     tables.Admission,
		normalizer.TableStayDailyCost: tables.StayDailyCost,
		normalizer.TableTestAdmission: tables.TestAdmission,
		normalizer.TableTest:          tables.Test,
		normalizer.TableTestCost:      tables.TestCost,
	}

	raw := make(normalizer.RawTables, len(physical))
	var missing []string
	for _, logical := range normalizer.RequiredTables {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		name := physical[logical]
		rows, err := src.FetchTable(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"table":    logical,
				"physical": name,
			}).Error("Failed to extract table")
			missing = append(missing, logical)
			continue
		}
		if rows == nil {
			rows = []map[string]interface{}{}
		}
		raw[logical] = rows
		logger.Log.WithFields(map[string]interface{}{
			"table": logical,
			"rows":  len(rows),
		}).Debug("Extracted table")
	}

	if len(missing) == len(normalizer.RequiredTables) {
		return nil, missing, fmt.Errorf("extract: no source table could be read")
	}
	return raw, missing, nil
}
