package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/walkguide/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to the walk and discovery
// services. Struct fields resolve through their json tags; enum-like values
// are flattened to strings in the resolvers.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	placeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Place",
		Fields: graphql.Fields{
			"name":        &graphql.Field{Type: graphql.String},
			"category":    &graphql.Field{Type: graphql.String},
			"description": &graphql.Field{Type: graphql.String},
			"location":    &graphql.Field{Type: geoPointType},
		},
	})

	walkType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GuidedWalk",
		Fields: graphql.Fields{
			"category":      &graphql.Field{Type: graphql.String},
			"stops":         &graphql.Field{Type: graphql.NewList(placeType)},
			"path":          &graphql.Field{Type: graphql.NewList(geoPointType)},
			"path_source":   &graphql.Field{Type: graphql.String},
			"shape_failure": &graphql.Field{Type: graphql.String},
			"distance_km":   &graphql.Field{Type: graphql.Float},
			"duration_min":  &graphql.Field{Type: graphql.Int},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Session",
		Fields: graphql.Fields{
			"id":       &graphql.Field{Type: graphql.String},
			"category": &graphql.Field{Type: graphql.String},
			"visited":  &graphql.Field{Type: graphql.NewList(graphql.String)},
			"position": &graphql.Field{Type: geoPointType},
		},
	})

	proximityType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ProximityResult",
		Fields: graphql.Fields{
			"state":       &graphql.Field{Type: graphql.String},
			"nearby":      &graphql.Field{Type: placeType},
			"distance_km": &graphql.Field{Type: graphql.Float},
			"visited":     &graphql.Field{Type: graphql.NewList(graphql.String)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"categories": &graphql.Field{
				Type:        graphql.NewList(graphql.String),
				Description: "Categories in catalog order",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Walks.Categories(p.Context)
				},
			},
			"places": &graphql.Field{
				Type:        graphql.NewList(placeType),
				Description: "Places of a category, or all places",
				Args: graphql.FieldConfigArgument{
					"category": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					category, _ := p.Args["category"].(string)
					return deps.Walks.Places(p.Context, category)
				},
			},
			"guidedWalk": &graphql.Field{
				Type:        walkType,
				Description: "Nearest-neighbour walk through a category from the city anchor",
				Args: graphql.FieldConfigArgument{
					"category": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"shape":    &graphql.ArgumentConfig{Type: graphql.Boolean, DefaultValue: false},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					category := p.Args["category"].(string)
					shape, _ := p.Args["shape"].(bool)
					route, err := deps.Walks.PlanGuidedWalk(p.Context, category, shape)
					if err != nil {
						return nil, err
					}
					return walkToMap(route), nil
				},
			},
			"session": &graphql.Field{
				Type:        sessionType,
				Description: "A discovery session",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					sess, err := deps.Discovery.Session(p.Context, p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					out := map[string]interface{}{
						"id":       sess.ID,
						"category": sess.Category,
						"visited":  sess.Visited.Names(),
					}
					if sess.Position != nil {
						out["position"] = sess.Position
					}
					return out, nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"updatePosition": &graphql.Field{
				Type:        proximityType,
				Description: "Report a walker position and run the proximity check",
				Args: graphql.FieldConfigArgument{
					"session": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"lat":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					pos := domain.GeoPoint{Lat: p.Args["lat"].(float64), Lon: p.Args["lon"].(float64)}
					res, err := deps.Discovery.UpdatePosition(p.Context, p.Args["session"].(string), pos)
					if err != nil {
						return nil, err
					}
					out := map[string]interface{}{
						"state":       res.State.String(),
						"distance_km": res.DistanceKm,
						"visited":     res.Visited.Names(),
					}
					if res.Nearby != nil {
						out["nearby"] = res.Nearby
					}
					return out, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

func walkToMap(r *domain.WalkRoute) map[string]interface{} {
	return map[string]interface{}{
		"category":      r.Category,
		"stops":         r.Stops,
		"path":          r.Path.Coordinates,
		"path_source":   string(r.PathSource),
		"shape_failure": r.ShapeFailure,
		"distance_km":   r.DistanceKm,
		"duration_min":  r.DurationMin,
	}
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil || req.Query == "" {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.JSON(result)
	}
}
