package graph

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Projector materializes dedupe results as a product graph. Listings
// become :Listing nodes, groups become :Product nodes, and membership
// becomes SAME_PRODUCT edges pointing at the product node.
type Projector struct {
	client *Client
	logger ectologger.Logger
}

// NewProjector creates a new graph projector
func NewProjector(client *Client, logger ectologger.Logger) *Projector {
	return &Projector{
		client: client,
		logger: logger,
	}
}

// ProjectListings upserts listing nodes for the given records
func (p *Projector) ProjectListings(ctx context.Context, records []*models.RawRecord) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Projector.ProjectListings")
	defer span.End()

	if len(records) == 0 {
		return nil
	}

	rows := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		rows = append(rows, map[string]any{
			"id":          rec.ID,
			"name":        rec.Name,
			"brand":       rec.BrandOrEmpty(),
			"retailer_id": rec.RetailerID,
		})
	}

	cypher := `
		UNWIND $rows AS row
		MERGE (l:Listing {id: row.id})
		SET l.name = row.name,
		    l.brand = row.brand,
		    l.retailer_id = row.retailer_id
	`

	_, err := p.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"rows": rows})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to project listings")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"count": len(records),
	}).Debug("Projected listings")
	return nil
}

// ProjectGroups upserts product nodes and SAME_PRODUCT edges for a run
func (p *Projector) ProjectGroups(ctx context.Context, runID string, results []models.GroupResult) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Projector.ProjectGroups")
	defer span.End()

	if len(results) == 0 {
		return nil
	}

	rows := make([]map[string]any, 0, len(results))
	for _, res := range results {
		rows = append(rows, map[string]any{
			"group_id":            res.GroupID,
			"run_id":              runID,
			"member_ids":          res.MemberIDs,
			"canonical_record_id": res.CanonicalRecordID,
			"canonical_name":      res.CanonicalName,
		})
	}

	cypher := `
		UNWIND $rows AS row
		MERGE (g:Product {group_id: row.group_id})
		SET g.run_id = row.run_id,
		    g.canonical_record_id = row.canonical_record_id,
		    g.canonical_name = row.canonical_name
		WITH g, row
		UNWIND row.member_ids AS member_id
		MATCH (l:Listing {id: member_id})
		MERGE (l)-[r:SAME_PRODUCT]->(g)
		SET r.canonical = (member_id = row.canonical_record_id)
	`

	_, err := p.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"rows": rows})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to project groups")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id": runID,
		"groups": len(results),
	}).Info("Projected product groups")
	return nil
}

// DeleteRun removes product nodes and their edges for a run
func (p *Projector) DeleteRun(ctx context.Context, runID string) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Projector.DeleteRun")
	defer span.End()

	cypher := `
		MATCH (g:Product {run_id: $run_id})
		DETACH DELETE g
	`

	_, err := p.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"run_id": runID})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to delete run projection")
		return err
	}
	return nil
}

// GroupMembers returns the listing ids attached to a product node
func (p *Projector) GroupMembers(ctx context.Context, groupID string) ([]int64, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Projector.GroupMembers")
	defer span.End()

	cypher := `
		MATCH (l:Listing)-[:SAME_PRODUCT]->(g:Product {group_id: $group_id})
		RETURN l.id AS id
		ORDER BY id
	`

	out, err := p.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{"group_id": groupID})
		if err != nil {
			return nil, err
		}

		ids := make([]int64, 0)
		for result.Next(ctx) {
			record := result.Record()
			if v, ok := record.Get("id"); ok {
				if id, ok := v.(int64); ok {
					ids = append(ids, id)
				}
			}
		}
		return ids, result.Err()
	})
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to query group members")
		return nil, err
	}

	return out.([]int64), nil
}
