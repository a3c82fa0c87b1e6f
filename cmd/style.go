package main

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"

	"github.com/luca-patrignani/trust-consensus/adversary"
	"github.com/luca-patrignani/trust-consensus/consensus"
	"github.com/luca-patrignani/trust-consensus/simulation"
)

func printBanner() {
	pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("T", pterm.FgRed.ToStyle()),
		putils.LettersFromStringWithStyle("rust ", pterm.FgDarkGray.ToStyle()),
		putils.LettersFromStringWithStyle("S", pterm.FgRed.ToStyle()),
		putils.LettersFromStringWithStyle("im", pterm.FgDarkGray.ToStyle()),
	).Render()
}

func phaseLabel(p adversary.Phase) string {
	switch p {
	case adversary.PhaseAttack:
		return pterm.LightRed("(Attack)")
	case adversary.PhaseRecover:
		return pterm.LightGreen("(Recover)")
	default:
		return ""
	}
}

// roundTable renders the weighted scores of a round, marking the winner.
func roundTable(o simulation.RoundOutcome) pterm.TableData {
	data := pterm.TableData{{"Candidate", "Score", ""}}
	for _, s := range o.Result.Scores {
		mark := ""
		if s.Candidate == o.Result.Winner {
			mark = pterm.LightCyan("winner")
		}
		data = append(data, []string{string(s.Candidate), fmt.Sprintf("%.4f", s.Score), mark})
	}
	return data
}

func printRound(o simulation.RoundOutcome) {
	pterm.DefaultSection.Printfln("Round %d %s", o.Result.Round, phaseLabel(o.Phase))
	_ = pterm.DefaultTable.WithHasHeader().WithData(roundTable(o)).Render()
	if len(o.Result.Tied) > 1 {
		pterm.Warning.Printfln("Tie between %v, resolved by %s", o.Result.Tied, o.Result.Resolution)
	}
	if o.Result.Excluded > 0 {
		pterm.Info.Printfln("%d votes excluded", o.Result.Excluded)
	}
}

func printStatus(chains []consensus.ChainStatus) {
	pterm.DefaultSection.Println("Node Status")
	var tree pterm.LeveledList
	for _, chain := range chains {
		tree = append(tree, pterm.LeveledListItem{Level: 0, Text: "Lower Chain " + strconv.Itoa(chain.ID)})
		for _, n := range chain.Nodes {
			tree = append(tree, pterm.LeveledListItem{
				Level: 1,
				Text:  fmt.Sprintf("Node(id=%d, trust=%.2f)", n.ID, n.TrustScore),
			})
		}
	}
	root := putils.TreeFromLeveledList(tree)
	_ = pterm.DefaultTree.WithRoot(root).Render()
}

func printReport(r simulation.Report) {
	pterm.DefaultSection.Println("Simulation Results")
	pterm.Info.Printfln("Run %s, seed %d, %d rounds", r.RunID, r.Seed, r.Rounds)

	data := pterm.TableData{{"Candidate", "Wins", "Share"}}
	for _, w := range r.Wins {
		data = append(data, []string{string(w.Candidate), strconv.Itoa(w.Wins), fmt.Sprintf("%.1f%%", w.Share*100)})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()

	if r.Verdict == simulation.VerdictNoAttack {
		return
	}
	pterm.Println()
	pterm.Info.Printfln("Attacker's candidate (%s) won %d times.", r.AttackCandidate, r.AttackerWins)
	switch r.Verdict {
	case simulation.VerdictHighly:
		pterm.Error.Printfln("Attack was %s.", r.Verdict)
	case simulation.VerdictPartially:
		pterm.Warning.Printfln("Attack was %s.", r.Verdict)
	default:
		pterm.Success.Printfln("Attack was %s.", r.Verdict)
	}

	trust := pterm.TableData{{"Attacker", "Trust"}}
	for _, n := range r.AttackerTrust {
		trust = append(trust, []string{strconv.Itoa(n.ID), fmt.Sprintf("%.2f", n.TrustScore)})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(trust).Render()
}
