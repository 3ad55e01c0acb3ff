package arch

import "testing"

func TestCortexMClassify(t *testing.T) {
	cm := CortexM{}

	tests := []struct {
		name       string
		inst       Instruction
		funcLo     uint64
		funcHi     uint64
		wantDelta  uint64
		wantCall   bool
		wantDirect bool
		wantTarget uint64
		wantTail   bool
		wantErr    bool
	}{
		{
			name:      "push three registers and lr",
			inst:      Instruction{Mnemonic: "push", Operands: "{r4, r5, r6, lr}"},
			wantDelta: 16,
		},
		{
			name:      "stmdb sp writeback",
			inst:      Instruction{Mnemonic: "stmdb", Operands: "sp!, {r4, r5}"},
			wantDelta: 8,
		},
		{
			name:      "sub sp immediate",
			inst:      Instruction{Mnemonic: "sub", Operands: "sp, sp, #24"},
			wantDelta: 24,
		},
		{
			name:      "subw sp immediate",
			inst:      Instruction{Mnemonic: "subw", Operands: "sp, sp, #136"},
			wantDelta: 136,
		},
		{
			name:    "unrecognized sp subtract is a contract violation",
			inst:    Instruction{Mnemonic: "sub", Operands: "sp, r4"},
			wantErr: true,
		},
		{
			name:       "bl direct call",
			inst:       Instruction{Addr: 0x100, Mnemonic: "bl", Operands: "200 <bar>"},
			wantCall:   true,
			wantDirect: true,
			wantTarget: 0x200,
		},
		{
			name:     "blx register is indirect",
			inst:     Instruction{Mnemonic: "blx", Operands: "r3"},
			wantCall: true,
		},
		{
			name: "bx lr is a return, not a call",
			inst: Instruction{Mnemonic: "bx", Operands: "lr"},
		},
		{
			name:     "bx register is an indirect tail call",
			inst:     Instruction{Mnemonic: "bx", Operands: "r2"},
			wantCall: true,
			wantTail: true,
		},
		{
			name:   "conditional branch within function is not a call",
			inst:   Instruction{Mnemonic: "beq", Operands: "108 <self+0x8>"},
			funcLo: 0x100, funcHi: 0x110,
		},
		{
			name:       "unconditional branch outside function is a tail call",
			inst:       Instruction{Mnemonic: "b", Operands: "300 <other>"},
			funcLo:     0x100, funcHi: 0x110,
			wantCall:   true,
			wantDirect: true,
			wantTarget: 0x300,
			wantTail:   true,
		},
		{
			name: "plain mnemonic with no stack or call effect",
			inst: Instruction{Mnemonic: "mov", Operands: "r0, r1"},
		},
		{
			name:   "cbz within function is not a call",
			inst:   Instruction{Mnemonic: "cbz", Operands: "r3, 108 <self+0x8>"},
			funcLo: 0x100, funcHi: 0x110,
		},
		{
			name:       "cbnz outside function is a tail call",
			inst:       Instruction{Mnemonic: "cbnz", Operands: "r3, 300 <other>"},
			funcLo:     0x100, funcHi: 0x110,
			wantCall:   true,
			wantDirect: true,
			wantTarget: 0x300,
			wantTail:   true,
		},
		{
			name: "ldr pc from sp is a return, not a call",
			inst: Instruction{Mnemonic: "ldr", Operands: "pc, [sp], #4"},
		},
		{
			name:     "ldr pc from a jump table base is an indirect tail call",
			inst:     Instruction{Mnemonic: "ldr", Operands: "pc, [r1, r0, lsl #2]"},
			wantCall: true,
			wantTail: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eff, err := cm.Classify(tt.inst, tt.funcLo, tt.funcHi)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected contract violation error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if eff.StackDelta != tt.wantDelta {
				t.Errorf("StackDelta = %d, want %d", eff.StackDelta, tt.wantDelta)
			}
			if eff.IsCall != tt.wantCall {
				t.Errorf("IsCall = %v, want %v", eff.IsCall, tt.wantCall)
			}
			if tt.wantCall {
				if eff.Direct != tt.wantDirect {
					t.Errorf("Direct = %v, want %v", eff.Direct, tt.wantDirect)
				}
				if eff.Direct && eff.Target != tt.wantTarget {
					t.Errorf("Target = 0x%x, want 0x%x", eff.Target, tt.wantTarget)
				}
				if eff.TailCall != tt.wantTail {
					t.Errorf("TailCall = %v, want %v", eff.TailCall, tt.wantTail)
				}
			}
		})
	}
}

func TestRegListBytes(t *testing.T) {
	tests := []struct {
		ops  string
		want uint64
	}{
		{"{r4, r5, r6, lr}", 16},
		{"{r4-r7, lr}", 20},
		{"{}", 0},
		{"{r0}", 4},
	}
	for _, tt := range tests {
		if got := regListBytes(tt.ops); got != tt.want {
			t.Errorf("regListBytes(%q) = %d, want %d", tt.ops, got, tt.want)
		}
	}
}
