package dataset

import (
	"strconv"
	"strings"

	"imisexport/internal/apperr"
	"imisexport/internal/codes"
	"imisexport/internal/dimension"
	"imisexport/internal/source"
)

// ProductCodeFromBillCode extracts the product code, the second "-"
// separated segment of a bill code such as "B-PRD1-2024".
func ProductCodeFromBillCode(code string) (string, error) {
	parts := strings.Split(code, "-")
	if len(parts) < 2 || parts[1] == "" {
		return "", apperr.Format("bills", "bill code %q has no product segment", code)
	}
	return parts[1], nil
}

func parseRef(field, v string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, apperr.Format("bills", "%s %q is not an integer", field, v)
	}
	return n, nil
}

// BillRow flattens a bill. The facility id and the batch run id are stored
// as text on the bill; unparsable values and codes without a product
// segment are format errors.
func BillRow(m *dimension.Maps, b source.Bill) (Row, error) {
	hfID, err := parseRef("thirdparty id", b.ThirdpartyID)
	if err != nil {
		return nil, err
	}
	runID, err := parseRef("subject id", b.SubjectID)
	if err != nil {
		return nil, err
	}
	productCode, err := ProductCodeFromBillCode(b.Code)
	if err != nil {
		return nil, err
	}

	hf := m.Facility(hfID)
	var month, year any = codes.Unknown, codes.Unknown
	if br, ok := m.BatchRun(runID); ok {
		month, year = int64(br.Month), int64(br.Year)
	}
	return Row{
		hf.Name,
		hf.Region,
		amount(b.AmountNet),
		optDate(b.DateBill),
		month,
		year,
		m.ProductByCode(productCode),
	}, nil
}
