package rag

import (
	"context"
	"log/slog"
)

// seedSource tags the built-in starter set so it can be replaced wholesale
// when curated guidelines are loaded.
const seedSource = "builtin_v1"

var seedItems = []Item{
	{
		Content:  "Fever in adults: encourage rest and frequent fluids. Paracetamol may reduce fever. Seek care if fever lasts more than 3 days, exceeds 39.5C, or is accompanied by stiff neck, rash, or confusion.",
		Metadata: map[string]string{"source": seedSource, "category": "primary_care"},
	},
	{
		Content:  "Diarrhea and dehydration: give oral rehydration solution (ORS) after each loose stool. Continue feeding. Danger signs are sunken eyes, no tears, very little urine, and lethargy; these need a clinic visit the same day.",
		Metadata: map[string]string{"source": seedSource, "category": "primary_care"},
	},
	{
		Content:  "Cough and cold: most resolve within 1-2 weeks without antibiotics. Honey and warm fluids ease symptoms in adults and children over one year. Fast breathing, chest indrawing, or inability to drink need urgent assessment.",
		Metadata: map[string]string{"source": seedSource, "category": "primary_care"},
	},
	{
		Content:  "Antenatal danger signs: vaginal bleeding, severe headache with blurred vision, swollen face or hands, fever, reduced fetal movement, and waters breaking before 37 weeks all require immediate referral to a health facility.",
		Metadata: map[string]string{"source": seedSource, "category": "maternal_health"},
	},
	{
		Content:  "Routine pregnancy care: at least four antenatal visits, iron and folic acid daily, two doses of tetanus vaccine, and a birth plan naming the nearest facility with skilled attendance.",
		Metadata: map[string]string{"source": seedSource, "category": "maternal_health"},
	},
	{
		Content:  "Postpartum bleeding: soaking more than one pad per hour after delivery is an emergency. Keep the mother warm, encourage breastfeeding to help the womb contract, and transport to a facility without delay.",
		Metadata: map[string]string{"source": seedSource, "category": "maternal_health"},
	},
	{
		Content:  "Antibiotic safety: complete the full prescribed course even when symptoms improve. Never share leftover antibiotics. Stopping early breeds resistant infections that are harder to treat.",
		Metadata: map[string]string{"source": seedSource, "category": "pharmacology"},
	},
	{
		Content:  "Paracetamol dosing caution: adults should not exceed 4 grams in 24 hours from all sources combined. Many cold remedies already contain paracetamol; taking them together risks liver damage.",
		Metadata: map[string]string{"source": seedSource, "category": "pharmacology"},
	},
	{
		Content:  "Medicines in pregnancy: avoid ibuprofen and aspirin, especially in the third trimester. Always tell the dispenser about a pregnancy before accepting any medicine, including herbal preparations.",
		Metadata: map[string]string{"source": seedSource, "category": "pharmacology"},
	},
	{
		Content:  "Emergency referral criteria: unconsciousness, convulsions, severe bleeding, chest pain, sudden weakness of one side, and obstructed breathing require immediate transport to the nearest hospital, not a routine appointment.",
		Metadata: map[string]string{"source": seedSource, "category": "referral"},
	},
	{
		Content:  "Referral practice: send a written note with the patient stating symptoms, onset, treatments already given, and vital signs if known. Call ahead when a phone number for the facility is available.",
		Metadata: map[string]string{"source": seedSource, "category": "referral"},
	},
}

// Seed indexes the built-in guideline starter set. Unless force is set it
// is a no-op when the index already has chunks.
func Seed(ctx context.Context, idx *Index, force bool) error {
	count, err := idx.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 && !force {
		slog.Debug("guidelines already seeded", "chunks", count)
		return nil
	}
	if err := idx.AddBatch(ctx, seedItems); err != nil {
		return err
	}
	slog.Info("seeded guidelines", "chunks", len(seedItems))
	return nil
}
