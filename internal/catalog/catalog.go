// Package catalog declares the target tables of a py-load-uniprot
// schema: names, ordered columns, keys, foreign keys and post-load
// indexes. It owns every table name used anywhere in the pipeline so
// that DDL never needs ad hoc placeholder substitution.
package catalog

// ForeignKey declares a child-table column set that must reference an
// existing row in another table of the same schema.
type ForeignKey struct {
	Columns    []string
	RefTable   string
	RefColumns []string
	// OnDelete is the SQL ON DELETE policy, e.g. "CASCADE" or "RESTRICT".
	OnDelete string
}

// IndexDef declares a post-load index.
type IndexDef struct {
	Name    string
	Table   string
	Columns []string
	// Method is the index access method, e.g. "btree" or "gin".
	Method string
}

// Table declares one target table.
type Table struct {
	Name        string
	Columns     []string // full ordered column list, including key columns
	PrimaryKey  []string
	ForeignKeys []ForeignKey
}

// Catalog is the full set of target tables, in dependency order
// (parents before children) so that ApplyTableDefinitions and the
// delta merge order can both iterate it directly.
type Catalog []Table

// ByName returns the table definition with the given name, or the
// zero Table and false if it is not present.
func (c Catalog) ByName(name string) (Table, bool) {
	for _, t := range c {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Default is the catalog of target tables, ordered so that taxonomy
// and proteins (the tables every other table's foreign keys
// reference) come first.
var Default = Catalog{
	{
		Name:       "taxonomy",
		Columns:    []string{"ncbi_taxid", "scientific_name", "lineage"},
		PrimaryKey: []string{"ncbi_taxid"},
	},
	{
		Name: "proteins",
		Columns: []string{
			"primary_accession", "uniprot_id", "ncbi_taxid", "sequence_length",
			"molecular_weight", "created_date", "modified_date",
			"comments_data", "features_data", "db_references_data", "evidence_data",
		},
		PrimaryKey: []string{"primary_accession"},
		ForeignKeys: []ForeignKey{
			{Columns: []string{"ncbi_taxid"}, RefTable: "taxonomy", RefColumns: []string{"ncbi_taxid"}, OnDelete: "RESTRICT"},
		},
	},
	{
		Name:       "sequences",
		Columns:    []string{"primary_accession", "sequence"},
		PrimaryKey: []string{"primary_accession"},
		ForeignKeys: []ForeignKey{
			{Columns: []string{"primary_accession"}, RefTable: "proteins", RefColumns: []string{"primary_accession"}, OnDelete: "CASCADE"},
		},
	},
	{
		Name:       "accessions",
		Columns:    []string{"protein_accession", "secondary_accession"},
		PrimaryKey: []string{"protein_accession", "secondary_accession"},
		ForeignKeys: []ForeignKey{
			{Columns: []string{"protein_accession"}, RefTable: "proteins", RefColumns: []string{"primary_accession"}, OnDelete: "CASCADE"},
		},
	},
	{
		Name:       "genes",
		Columns:    []string{"protein_accession", "gene_name", "is_primary"},
		PrimaryKey: []string{"protein_accession", "gene_name"},
		ForeignKeys: []ForeignKey{
			{Columns: []string{"protein_accession"}, RefTable: "proteins", RefColumns: []string{"primary_accession"}, OnDelete: "CASCADE"},
		},
	},
	{
		Name:       "keywords",
		Columns:    []string{"protein_accession", "keyword_id", "keyword_label"},
		PrimaryKey: []string{"protein_accession", "keyword_id"},
		ForeignKeys: []ForeignKey{
			{Columns: []string{"protein_accession"}, RefTable: "proteins", RefColumns: []string{"primary_accession"}, OnDelete: "CASCADE"},
		},
	},
	{
		Name:       "protein_to_go",
		Columns:    []string{"protein_accession", "go_term_id"},
		PrimaryKey: []string{"protein_accession", "go_term_id"},
		ForeignKeys: []ForeignKey{
			{Columns: []string{"protein_accession"}, RefTable: "proteins", RefColumns: []string{"primary_accession"}, OnDelete: "CASCADE"},
		},
	},
	{
		Name:       "protein_to_taxonomy",
		Columns:    []string{"protein_accession", "ncbi_taxid"},
		PrimaryKey: []string{"protein_accession", "ncbi_taxid"},
		ForeignKeys: []ForeignKey{
			{Columns: []string{"protein_accession"}, RefTable: "proteins", RefColumns: []string{"primary_accession"}, OnDelete: "CASCADE"},
			{Columns: []string{"ncbi_taxid"}, RefTable: "taxonomy", RefColumns: []string{"ncbi_taxid"}, OnDelete: "RESTRICT"},
		},
	},
	{
		Name:       "py_load_uniprot_metadata",
		Columns:    []string{"version", "release_date", "load_timestamp", "swissprot_entry_count", "trembl_entry_count"},
		PrimaryKey: []string{"version"},
	},
	{
		Name:       "load_history",
		Columns:    []string{"id", "run_id", "status", "mode", "dataset", "start_time", "end_time", "error_message", "bad_entry_count"},
		PrimaryKey: []string{"id"},
	},
}

// SpoolTables returns the tables that the transform coordinator and
// bulk loader move data through — every table except load_history and
// py_load_uniprot_metadata, which the metadata package writes directly.
func (c Catalog) SpoolTables() []Table {
	out := make([]Table, 0, len(c))
	for _, t := range c {
		if t.Name == "load_history" || t.Name == "py_load_uniprot_metadata" {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Indexes returns the post-load indexes for the default catalog.
func (c Catalog) Indexes() []IndexDef {
	return []IndexDef{
		{Name: "idx_proteins_uniprot_id", Table: "proteins", Columns: []string{"uniprot_id"}, Method: "btree"},
		{Name: "idx_accessions_secondary", Table: "accessions", Columns: []string{"secondary_accession"}, Method: "btree"},
		{Name: "idx_genes_name", Table: "genes", Columns: []string{"gene_name"}, Method: "btree"},
		{Name: "idx_keywords_label", Table: "keywords", Columns: []string{"keyword_label"}, Method: "btree"},
		{Name: "idx_protein_to_go_term", Table: "protein_to_go", Columns: []string{"go_term_id"}, Method: "btree"},
		{Name: "idx_protein_to_taxonomy_taxid", Table: "protein_to_taxonomy", Columns: []string{"ncbi_taxid"}, Method: "btree"},
		{Name: "idx_proteins_comments_gin", Table: "proteins", Columns: []string{"comments_data"}, Method: "gin"},
		{Name: "idx_proteins_features_gin", Table: "proteins", Columns: []string{"features_data"}, Method: "gin"},
		{Name: "idx_proteins_db_references_gin", Table: "proteins", Columns: []string{"db_references_data"}, Method: "gin"},
	}
}

// DeltaMergeOrder is the fixed parent-before-child table order that
// the delta load strategy must honor.
func (c Catalog) DeltaMergeOrder() []Table {
	return c.SpoolTables()
}
