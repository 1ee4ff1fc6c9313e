package reports

import (
	"encoding/json"
	"fmt"
)

type encodedRecord struct {
	rules  []byte
	audit  []byte
	report []byte
}

func encodeRecord(rec Record) (encodedRecord, error) {
	rules := rec.RepairRules
	if rules == nil {
		rules = []string{}
	}
	var out encodedRecord
	var err error
	if out.rules, err = json.Marshal(rules); err != nil {
		return encodedRecord{}, fmt.Errorf("encode repair rules: %w", err)
	}
	if out.audit, err = json.Marshal(rec.Audit); err != nil {
		return encodedRecord{}, fmt.Errorf("encode audit: %w", err)
	}
	if out.report, err = json.Marshal(rec.Report); err != nil {
		return encodedRecord{}, fmt.Errorf("encode report: %w", err)
	}
	return out, nil
}

func (e encodedRecord) decodeInto(rec *Record) error {
	if len(e.rules) > 0 {
		if err := json.Unmarshal(e.rules, &rec.RepairRules); err != nil {
			return fmt.Errorf("decode repair rules: %w", err)
		}
	}
	if rec.RepairRules == nil {
		rec.RepairRules = []string{}
	}
	if err := json.Unmarshal(e.audit, &rec.Audit); err != nil {
		return fmt.Errorf("decode audit: %w", err)
	}
	if err := json.Unmarshal(e.report, &rec.Report); err != nil {
		return fmt.Errorf("decode report: %w", err)
	}
	return nil
}
