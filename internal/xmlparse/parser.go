// Package xmlparse implements a streaming UniProtKB XML entry
// parser. It decomposes the document into a lazy
// sequence of Entry records, discarding each <entry> subtree from
// memory as soon as it has been extracted so that memory use stays
// bounded by the size of the single largest entry rather than the
// size of the input file.
package xmlparse

import (
	"compress/gzip"
	"context"
	"encoding/xml"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gowthamrao/py-load-unitprot/internal/types"
	"github.com/pkg/errors"
)

// releaseAttr is the root-element attribute the parser reads once to
// surface the dataset's release tag to the coordinator.
const releaseAttr = "version"

// EntryResult is sent on the channel returned by Entries. Exactly one
// of Entry or Err is set. An Err that is an *types.InvalidEntry is
// non-fatal and should be counted and skipped by the caller; any
// other error is fatal and the channel will be closed immediately
// after it.
type EntryResult struct {
	Entry *types.Entry
	Err   error
}

// Parser reads one gzip-compressed UniProtKB XML document.
// It is single-pass and not restartable.
type Parser struct {
	gz      *gzip.Reader
	dec     *xml.Decoder
	profile types.Profile
	release types.Release
}

// New wraps r, decompresses it, and reads just far enough to capture
// the root element's release tag before any entries are parsed.
func New(r io.Reader, profile types.Profile) (*Parser, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening gzip stream")
	}
	p := &Parser{
		gz:      gz,
		dec:     xml.NewDecoder(gz),
		profile: profile,
	}
	if err := p.readRootElement(); err != nil {
		gz.Close()
		return nil, err
	}
	return p, nil
}

func (p *Parser) readRootElement() error {
	for {
		tok, err := p.dec.Token()
		if err != nil {
			return errors.Wrap(err, "reading root element")
		}
		if se, ok := tok.(xml.StartElement); ok {
			for _, a := range se.Attr {
				if a.Name.Local == releaseAttr {
					p.release.Tag = a.Value
				}
			}
			return nil
		}
	}
}

// Release returns the dataset's release tag, valid once New has returned.
func (p *Parser) Release() types.Release { return p.release }

// Entries starts streaming <entry> elements. The returned channel is
// closed when the document is exhausted, ctx is canceled, or a fatal
// (non-InvalidEntry) error occurs.
func (p *Parser) Entries(ctx context.Context) <-chan EntryResult {
	ch := make(chan EntryResult, 1)
	go func() {
		defer close(ch)
		defer p.gz.Close()
		for {
			tok, err := p.dec.Token()
			if err == io.EOF {
				return
			}
			if err != nil {
				ch <- EntryResult{Err: errors.Wrap(err, "reading xml token")}
				return
			}
			se, ok := tok.(xml.StartElement)
			if !ok || se.Name.Local != "entry" {
				continue
			}

			// Materialize the subtree, extract the Entry, then let
			// node fall out of scope: nothing in the goroutine keeps
			// a reference to a previous entry's nodes or siblings, so
			// memory does not grow with entry count.
			node, err := decodeElement(p.dec, se)
			if err != nil {
				ch <- EntryResult{Err: errors.Wrap(err, "decoding entry element")}
				return
			}
			entry, err := nodeToEntry(node, p.profile)
			if err != nil {
				select {
				case ch <- EntryResult{Err: &types.InvalidEntry{Accession: firstAccession(node), Cause: err}}:
				case <-ctx.Done():
					return
				}
				continue
			}

			select {
			case ch <- EntryResult{Entry: entry}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func firstAccession(n *Node) string {
	if c, ok := n.ChildNamed("accession"); ok {
		return c.Text
	}
	return ""
}

// nodeToEntry extracts the typed fields from an <entry> subtree
// and, per profile, attaches the four JSON side payloads.
func nodeToEntry(n *Node, profile types.Profile) (*types.Entry, error) {
	accs := n.ChildrenNamed("accession")
	if len(accs) == 0 {
		return nil, errors.New("entry has no <accession>")
	}

	e := &types.Entry{
		PrimaryAccession: accs[0].Text,
	}
	for _, a := range accs[1:] {
		e.SecondaryAccessions = append(e.SecondaryAccessions, a.Text)
	}

	if c, ok := n.ChildNamed("name"); ok {
		e.UniProtID = c.Text
	}

	if created, ok := n.Attr("created"); ok {
		if t, err := time.Parse("2006-01-02", created); err == nil {
			e.CreatedDate = t
		}
	}
	if modified, ok := n.Attr("modified"); ok {
		if t, err := time.Parse("2006-01-02", modified); err == nil {
			e.ModifiedDate = t
		}
	}

	if org, ok := n.ChildNamed("organism"); ok {
		extractOrganism(org, e)
	}

	if seq, ok := n.ChildNamed("sequence"); ok {
		e.Sequence = strings.ReplaceAll(seq.Text, " ", "")
		if length, ok := seq.Attr("length"); ok {
			if v, err := strconv.Atoi(length); err == nil {
				e.SequenceLength = v
			}
		}
		if mass, ok := seq.Attr("mass"); ok {
			if v, err := strconv.Atoi(mass); err == nil {
				e.MolecularWeight = v
			}
		}
	}

	for _, g := range n.ChildrenNamed("gene") {
		extractGenes(g, e)
	}

	var comments, features, dbRefs, evidence []*Node
	for _, c := range n.Children {
		switch c.Tag {
		case "comment":
			comments = append(comments, c)
		case "feature":
			features = append(features, c)
		case "evidence":
			evidence = append(evidence, c)
		case "keyword":
			if id, ok := c.Attr("id"); ok {
				e.Keywords = append(e.Keywords, types.Keyword{ID: id, Label: c.Text})
			}
		case "dbReference":
			typ, _ := c.Attr("type")
			switch typ {
			case "GO":
				if id, ok := c.Attr("id"); ok {
					e.GOTerms = append(e.GOTerms, id)
				}
			case "NCBI Taxonomy":
				// Handled via organism, unless this entry's organism
				// element lacked it; either way it is excluded from
				// db_references_data.
			default:
				dbRefs = append(dbRefs, c)
			}
		}
	}

	if err := attachJSONPayloads(e, profile, comments, features, dbRefs, evidence); err != nil {
		return nil, err
	}

	return e, nil
}

func extractOrganism(org *Node, e *types.Entry) {
	for _, name := range org.ChildrenNamed("name") {
		if t, _ := name.Attr("type"); t == "scientific" {
			e.OrganismName = name.Text
			break
		}
	}
	for _, ref := range org.ChildrenNamed("dbReference") {
		if t, _ := ref.Attr("type"); t == "NCBI Taxonomy" {
			if id, ok := ref.Attr("id"); ok {
				if v, err := strconv.Atoi(id); err == nil {
					e.NCBITaxID = v
				}
			}
			break
		}
	}
	if lineage, ok := org.ChildNamed("lineage"); ok {
		var taxa []string
		for _, t := range lineage.ChildrenNamed("taxon") {
			taxa = append(taxa, t.Text)
		}
		e.OrganismLineage = strings.Join(taxa, "; ")
	}
}

func extractGenes(g *Node, e *types.Entry) {
	for _, name := range g.ChildrenNamed("name") {
		typ, _ := name.Attr("type")
		e.Genes = append(e.Genes, types.Gene{
			Name:      name.Text,
			IsPrimary: typ == "primary",
		})
	}
}

func attachJSONPayloads(
	e *types.Entry, profile types.Profile, comments, features, dbRefs, evidence []*Node,
) error {
	if profile == types.ProfileStandard {
		var kept []*Node
		for _, c := range comments {
			if typ, _ := c.Attr("type"); types.StandardCommentKinds[typ] {
				kept = append(kept, c)
			}
		}
		raw, err := MarshalArray(kept)
		if err != nil {
			return errors.Wrap(err, "encoding comments_data")
		}
		e.Comments = raw
		return nil
	}

	var err error
	if e.Comments, err = MarshalArray(comments); err != nil {
		return errors.Wrap(err, "encoding comments_data")
	}
	if e.Features, err = MarshalArray(features); err != nil {
		return errors.Wrap(err, "encoding features_data")
	}
	if e.DBReferences, err = MarshalArray(dbRefs); err != nil {
		return errors.Wrap(err, "encoding db_references_data")
	}
	if e.Evidence, err = MarshalArray(evidence); err != nil {
		return errors.Wrap(err, "encoding evidence_data")
	}
	return nil
}
