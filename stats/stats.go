// Package stats implements the persisted-state container spec §6 names:
// a binary tree-schema-plus-records format, and a human/CI-oriented YAML
// mirror (spec §6: "The design is language-neutral; an implementation may
// emit YAML directly instead"). It follows the teacher's own YAML
// conventions (core/program.go's yaml-tagged structs) for the mirror, and
// a from-scratch fixed-width binary encoding for the container proper,
// since nothing in the retrieval pack ships a stats-serialization library
// to bind to.
package stats

import (
	"encoding/binary"
	"fmt"
	"io"
)

// magic identifies the container format; chosen arbitrarily, distinct
// from any real MARSSx86 on-disk value since the original format is not
// reproduced byte-for-byte, only its header shape (spec §6).
const magic uint32 = 0x4d415253 // "MARS"

// Node is one entry in the stats tree: either a scalar counter (Histogram
// is empty, Value holds the count) or a histogram (Buckets holds one
// count per Histogram label), with zero or more Children (spec §6:
// "a serialized tree schema (depth-first: header, name, optional
// histogram labels, subnodes)").
type Node struct {
	Name      string
	Histogram []string
	Value     uint64
	Buckets   []uint64
	Children  []*Node
}

// NewCounter creates a scalar leaf node.
func NewCounter(name string) *Node { return &Node{Name: name} }

// NewHistogram creates a histogram leaf node with one bucket per label.
func NewHistogram(name string, labels []string) *Node {
	return &Node{Name: name, Histogram: labels, Buckets: make([]uint64, len(labels))}
}

// AddChild appends a child node, returning it for chaining.
func (n *Node) AddChild(child *Node) *Node {
	n.Children = append(n.Children, child)
	return child
}

// Find locates a descendant by dotted path (e.g.
// "cpurequest.count.hit.read.hit.hit"), returning nil if any segment is
// missing.
func (n *Node) Find(path string) *Node {
	cur := n
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '.' {
			seg := path[start:i]
			var next *Node
			for _, c := range cur.Children {
				if c.Name == seg {
					next = c
					break
				}
			}
			if next == nil {
				return nil
			}
			cur = next
			start = i + 1
		}
	}
	return cur
}

// WriteContainer serializes root's schema depth-first followed by its
// leaf records and a name index, in the header layout spec §6 specifies.
func WriteContainer(w io.Writer, root *Node) error {
	var template []byte
	var records []uint64
	var index []indexEntry

	serializeSchema(root, &template)
	collectRecords(root, "", &records, &index)

	const recordSize = 8 // one uint64 per record slot
	const headerSize = 4 + 4 + 8*7 // magic, pad, and the 7 uint64 fields below
	templateOffset := uint64(headerSize)
	recordOffset := templateOffset + uint64(len(template))
	indexOffset := recordOffset + uint64(len(records))*recordSize

	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(buf[0:4], magic)
	binary.LittleEndian.PutUint64(buf[8:16], templateOffset)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(len(template)))
	binary.LittleEndian.PutUint64(buf[24:32], recordOffset)
	binary.LittleEndian.PutUint64(buf[32:40], recordSize)
	binary.LittleEndian.PutUint64(buf[40:48], uint64(len(records)))
	binary.LittleEndian.PutUint64(buf[48:56], indexOffset)
	binary.LittleEndian.PutUint64(buf[56:64], uint64(len(index)))
	if _, err := w.Write(buf); err != nil {
		return err
	}
	if _, err := w.Write(template); err != nil {
		return err
	}
	for _, v := range records {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	for _, e := range index {
		if err := writeString(w, e.name); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint64(e.offset)); err != nil {
			return err
		}
	}
	return nil
}

type indexEntry struct {
	name   string
	offset int
}

func serializeSchema(n *Node, out *[]byte) {
	writeStringBuf(out, n.Name)
	appendUvarint(out, uint64(len(n.Histogram)))
	for _, label := range n.Histogram {
		writeStringBuf(out, label)
	}
	appendUvarint(out, uint64(len(n.Children)))
	for _, c := range n.Children {
		serializeSchema(c, out)
	}
}

func collectRecords(n *Node, prefix string, records *[]uint64, index *[]indexEntry) {
	name := n.Name
	if prefix != "" {
		name = prefix + "." + n.Name
	}
	if len(n.Children) == 0 {
		offset := len(*records)
		*index = append(*index, indexEntry{name: name, offset: offset})
		if len(n.Histogram) > 0 {
			*records = append(*records, n.Buckets...)
		} else {
			*records = append(*records, n.Value)
		}
		return
	}
	for _, c := range n.Children {
		collectRecords(c, name, records, index)
	}
}

func writeStringBuf(out *[]byte, s string) {
	appendUvarint(out, uint64(len(s)))
	*out = append(*out, s...)
}

func appendUvarint(out *[]byte, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	*out = append(*out, tmp[:n]...)
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// ReadContainer deserializes a container written by WriteContainer,
// reconstructing the tree's shape and leaf values (spec §8: "write(tree)
// then read(tree) reconstructs identical values").
func ReadContainer(r io.Reader) (*Node, error) {
	buf := make([]byte, 64)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	if got := binary.LittleEndian.Uint32(buf[0:4]); got != magic {
		return nil, fmt.Errorf("stats: bad magic %#x", got)
	}
	templateSize := binary.LittleEndian.Uint64(buf[16:24])
	recordCount := binary.LittleEndian.Uint64(buf[40:48])

	template := make([]byte, templateSize)
	if _, err := io.ReadFull(r, template); err != nil {
		return nil, err
	}

	records := make([]uint64, recordCount)
	for i := range records {
		if err := binary.Read(r, binary.LittleEndian, &records[i]); err != nil {
			return nil, err
		}
	}

	pos := 0
	cursor := 0
	root := parseSchema(template, &pos)
	fillRecords(root, records, &cursor)
	return root, nil
}

func parseSchema(buf []byte, pos *int) *Node {
	name := readStringBuf(buf, pos)
	nHist := readUvarintBuf(buf, pos)
	labels := make([]string, nHist)
	for i := range labels {
		labels[i] = readStringBuf(buf, pos)
	}
	n := &Node{Name: name, Histogram: labels}
	if nHist > 0 {
		n.Buckets = make([]uint64, nHist)
	}
	nChildren := readUvarintBuf(buf, pos)
	for i := uint64(0); i < nChildren; i++ {
		n.Children = append(n.Children, parseSchema(buf, pos))
	}
	return n
}

func fillRecords(n *Node, records []uint64, cursor *int) {
	if len(n.Children) == 0 {
		if len(n.Histogram) > 0 {
			copy(n.Buckets, records[*cursor:*cursor+len(n.Histogram)])
			*cursor += len(n.Histogram)
		} else {
			n.Value = records[*cursor]
			*cursor++
		}
		return
	}
	for _, c := range n.Children {
		fillRecords(c, records, cursor)
	}
}

func readStringBuf(buf []byte, pos *int) string {
	n := readUvarintBuf(buf, pos)
	s := string(buf[*pos : *pos+int(n)])
	*pos += int(n)
	return s
}

func readUvarintBuf(buf []byte, pos *int) uint64 {
	v, n := binary.Uvarint(buf[*pos:])
	*pos += n
	return v
}
