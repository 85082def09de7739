package assembler

import "strings"

const signatureTemplate = "\n\n---\n\n\n" +
	"Generated by NTSB Bot Mk. 5\n\n" +
	"The docket, full report, and other information for this event can be found by searching " +
	"the NTSB's Query Tool, [CAROL](https://data.ntsb.gov/carol-main-public/basic-search) " +
	"(Case Analysis and Reporting Online), with the NTSB Number **{ntsb_no}**\n"

func signature(ntsbNumber *string) string {
	number := "No data"
	if ntsbNumber != nil {
		number = *ntsbNumber
	}
	return strings.Replace(signatureTemplate, "{ntsb_no}", number, 1)
}
