package parser_test

import (
	"testing"

	"github.com/valpere/pseudotran/internal/block"
	"github.com/valpere/pseudotran/internal/parser"
)

func TestParse_Empty(t *testing.T) {
	p := parser.New()
	res := p.Parse("   \n\n  ")
	if !res.Success {
		t.Fatal("empty input should succeed")
	}
	if len(res.Blocks) != 0 {
		t.Errorf("expected 0 blocks, got %d", len(res.Blocks))
	}
}

func TestParse_PureCode(t *testing.T) {
	p := parser.New()
	res := p.Parse("def add(a, b):\n    return a + b\n")
	if len(res.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(res.Blocks))
	}
	if res.Blocks[0].Type != block.Python {
		t.Errorf("expected python block, got %s", res.Blocks[0].Type)
	}
}

func TestParse_PureProse(t *testing.T) {
	p := parser.New()
	res := p.Parse("Create a function that adds two numbers and prints the sum of them.\n")
	if len(res.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(res.Blocks))
	}
	if res.Blocks[0].Type != block.NaturalLanguage {
		t.Errorf("expected natural language block, got %s", res.Blocks[0].Type)
	}
}

func TestParse_SegmentsOnBlankLines(t *testing.T) {
	p := parser.New()
	content := "Sort the list of names alphabetically and remove any duplicates found.\n\nx = [1, 2, 3]\ny = sorted(x)\n"
	res := p.Parse(content)
	if len(res.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(res.Blocks))
	}
	if res.Blocks[0].Type != block.NaturalLanguage {
		t.Errorf("first block should be prose, got %s", res.Blocks[0].Type)
	}
	if res.Blocks[1].Type != block.Python {
		t.Errorf("second block should be code, got %s", res.Blocks[1].Type)
	}
}

func TestParse_LineNumbers(t *testing.T) {
	p := parser.New()
	content := "a = 1\n\nb = 2\n"
	res := p.Parse(content)
	if len(res.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(res.Blocks))
	}
	if res.Blocks[0].LineNumbers != [2]int{1, 1} {
		t.Errorf("first block lines: %v", res.Blocks[0].LineNumbers)
	}
	if res.Blocks[1].LineNumbers != [2]int{3, 3} {
		t.Errorf("second block lines: %v", res.Blocks[1].LineNumbers)
	}
}

func TestParse_MixedSegment(t *testing.T) {
	p := parser.New()
	content := "Compute the running total for each order in the list below.\ntotal = sum(orders)\nprint(total)\n"
	res := p.Parse(content)
	if len(res.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(res.Blocks))
	}
	if res.Blocks[0].Type != block.Mixed {
		t.Errorf("expected mixed block, got %s", res.Blocks[0].Type)
	}
}
