package spirv

import "github.com/shaderlab/nsbc/nsb"

// nameVarPass is the result of computeNameVariables: the two block-keyed
// sets the original bytecode generator calls _need_name_var_save and
// _need_name_var_load. A name only needs a Function-storage variable when
// it is stored in two or more distinct blocks and loaded from a block that
// isn't (solely) one of those — everything else stays in pure SSA form,
// carried block to block as a cached value id.
type nameVarPass struct {
	needSave map[string]map[string]bool // block label -> names to store on exit
	needLoad map[string]map[string]bool // block label -> names reloaded from their variable at each load_name
}

func (p *nameVarPass) loadsIn(block, name string) bool {
	return p.needLoad[block] != nil && p.needLoad[block][name]
}

// computeNameVariables makes one forward scan over prog, tracking which
// block each store_name happens in, to decide ahead of generation which
// local names are pure SSA and which cross block boundaries and so need a
// backing variable. Block labels follow the same convention generation
// itself uses: the implicit entry block is "", and every label op opens a
// new block named after it.
func computeNameVariables(prog *nsb.Program) *nameVarPass {
	pass := &nameVarPass{
		needSave: map[string]map[string]bool{},
		needLoad: map[string]map[string]bool{},
	}
	savedInBlocks := map[string]map[string]bool{}
	curBlock := ""

	for _, op := range prog.Ops {
		switch o := op.(type) {
		case nsb.Label:
			curBlock = o.Name
		case nsb.StoreName:
			blocks := savedInBlocks[o.Name]
			if blocks == nil {
				blocks = map[string]bool{}
				savedInBlocks[o.Name] = blocks
			}
			blocks[curBlock] = true
		case nsb.LoadName:
			blocks := savedInBlocks[o.Name]
			if blocks[curBlock] {
				continue // stored in this very block: no variable needed
			}
			if len(blocks) <= 1 {
				continue // stored at most once overall: direct SSA carry-over is safe
			}
			if pass.needLoad[curBlock] == nil {
				pass.needLoad[curBlock] = map[string]bool{}
			}
			pass.needLoad[curBlock][o.Name] = true
			for b := range blocks {
				if pass.needSave[b] == nil {
					pass.needSave[b] = map[string]bool{}
				}
				pass.needSave[b][o.Name] = true
			}
		}
	}
	return pass
}
