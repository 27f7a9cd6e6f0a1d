// ontoforge-provision is the schema management CLI: apply a schema
// document to an ontology, inspect what is provisioned, or wipe instance
// data.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ontoforge/ontoforge-go/internal/apptype"
	"github.com/ontoforge/ontoforge-go/pkg/ontoruntime"
)

var (
	flagURL           string
	flagAuthToken     string
	flagOntologiesDir string
	flagOntology      string
	flagEmbeddingDims int
)

func newService() (*ontoruntime.Service, error) {
	cfg := &ontoruntime.Config{
		URL:           flagURL,
		AuthToken:     flagAuthToken,
		OntologiesDir: flagOntologiesDir,
		EmbeddingDims: flagEmbeddingDims,
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return ontoruntime.NewService(cfg, log)
}

// readSchemaDocument loads a schema document from a YAML or JSON file.
func readSchemaDocument(path string) (*apptype.SchemaDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	doc := &apptype.SchemaDocument{}
	if strings.HasSuffix(path, ".json") {
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON schema document: %w", err)
		}
		return doc, nil
	}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML schema document: %w", err)
	}
	return doc, nil
}

func ontologyArg(doc *apptype.SchemaDocument) string {
	if flagOntology != "" {
		return flagOntology
	}
	if doc != nil && doc.Ontology.Key != "" {
		return doc.Ontology.Key
	}
	return "default"
}

func newApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <schema-file>",
		Short: "Provision an ontology from a YAML or JSON schema document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readSchemaDocument(args[0])
			if err != nil {
				return err
			}
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()

			result, err := svc.Provision(context.Background(), ontologyArg(doc), doc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Provisioned ontology %q: %d entity types, %d relation types, %d properties\n",
				result.OntologyKey, result.EntityTypes, result.RelationTypes, result.Properties)
			return nil
		},
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the provisioned schema as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()

			snap, err := svc.Schema(context.Background(), ontologyArg(nil))
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(snapshotToDocument(snap))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

// snapshotToDocument renders a snapshot back into document form, in the
// snapshot's deterministic type order.
func snapshotToDocument(snap *apptype.SchemaSnapshot) *apptype.SchemaDocument {
	doc := &apptype.SchemaDocument{
		Ontology: apptype.OntologySpec{
			Key:         snap.Ontology.Key,
			Name:        snap.Ontology.Name,
			Description: snap.Ontology.Description,
		},
	}
	for _, key := range snap.EntityTypeKeys() {
		et := snap.EntityTypes[key]
		doc.EntityTypes = append(doc.EntityTypes, apptype.EntityTypeSpec{
			Key:         et.Key,
			DisplayName: et.DisplayName,
			Description: et.Description,
			Properties:  propertySpecs(et.Properties),
		})
	}
	for _, key := range snap.RelationTypeKeys() {
		rt := snap.RelationTypes[key]
		doc.RelationTypes = append(doc.RelationTypes, apptype.RelationTypeSpec{
			Key:         rt.Key,
			DisplayName: rt.DisplayName,
			Description: rt.Description,
			Source:      rt.SourceKey,
			Target:      rt.TargetKey,
			Properties:  propertySpecs(rt.Properties),
		})
	}
	return doc
}

func propertySpecs(defs []apptype.PropertyDef) []apptype.PropertySpec {
	specs := make([]apptype.PropertySpec, len(defs))
	for i, d := range defs {
		specs[i] = apptype.PropertySpec{
			Key:         d.Key,
			DisplayName: d.DisplayName,
			Description: d.Description,
			Type:        string(d.Type),
			Required:    d.Required,
			Default:     d.Default,
		}
	}
	return specs
}

func newWipeCmd() *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete every entity and relation instance, keeping the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()

			result, err := svc.Wipe(context.Background(), ontologyArg(nil), confirm)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wiped ontology %q: %d entities, %d relations\n",
				result.OntologyKey, result.EntitiesDeleted, result.RelationsDeleted)
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "Required to actually wipe the data")
	return cmd
}

func main() {
	root := &cobra.Command{
		Use:           "ontoforge-provision",
		Short:         "Manage ontology schemas for the ontoforge instance engine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&flagURL, "libsql-url", os.Getenv("LIBSQL_URL"), "libSQL database URL")
	root.PersistentFlags().StringVar(&flagAuthToken, "auth-token", os.Getenv("LIBSQL_AUTH_TOKEN"), "Authentication token for remote databases")
	root.PersistentFlags().StringVar(&flagOntologiesDir, "ontologies-dir", os.Getenv("ONTOLOGIES_DIR"), "Base directory for ontologies (multi-ontology mode)")
	root.PersistentFlags().StringVar(&flagOntology, "ontology", "", "Ontology key to operate on")
	root.PersistentFlags().IntVar(&flagEmbeddingDims, "embedding-dims", 0, "Embedding dimensionality for new databases")

	root.AddCommand(newApplyCmd(), newShowCmd(), newWipeCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
