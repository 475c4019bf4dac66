package transcript

import (
	"fmt"
	"io"
)

// Accuracy compares an output log against ground truth. Lines are aligned
// by position; output lines beyond the truth are ignored.
type Accuracy struct {
	Lines          int
	Correct        int
	FalsePositives int
	FalseNegatives int
	Precision      float64
	Recall         float64
	F1             float64
}

// Score reads both logs and computes per-key accuracy. A truth line with
// no matching output line counts as an empty output.
func Score(truth, output io.Reader) (Accuracy, error) {
	want, err := ReadLog(truth)
	if err != nil {
		return Accuracy{}, fmt.Errorf("read truth: %w", err)
	}
	got, err := ReadLog(output)
	if err != nil {
		return Accuracy{}, fmt.Errorf("read output: %w", err)
	}

	var a Accuracy
	for i, w := range want {
		var out []string
		if i < len(got) {
			out = got[i].Tokens
		}
		correct, fp, fn := compare(w.Tokens, out)
		a.Correct += correct
		a.FalsePositives += fp
		a.FalseNegatives += fn
		a.Lines++
	}
	a.finish()
	return a, nil
}

func compare(truth, output []string) (correct, falsePositives, falseNegatives int) {
	want := set(truth)
	got := set(output)
	for k := range got {
		if want[k] {
			correct++
		} else {
			falsePositives++
		}
	}
	for k := range want {
		if !got[k] {
			falseNegatives++
		}
	}
	return correct, falsePositives, falseNegatives
}

func set(tokens []string) map[string]bool {
	m := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		m[t] = true
	}
	return m
}

func (a *Accuracy) finish() {
	a.Precision = ratio(a.Correct, a.Correct+a.FalsePositives)
	a.Recall = ratio(a.Correct, a.Correct+a.FalseNegatives)
	if a.Precision+a.Recall > 0 {
		a.F1 = 2 * a.Precision * a.Recall / (a.Precision + a.Recall)
	}
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func (a Accuracy) String() string {
	return fmt.Sprintf("lines=%d correct=%d false_positives=%d false_negatives=%d precision=%.2f%% recall=%.2f%% f1=%.2f%%",
		a.Lines, a.Correct, a.FalsePositives, a.FalseNegatives, a.Precision*100, a.Recall*100, a.F1*100)
}
