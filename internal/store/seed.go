package store

import "context"

// SeedAchievements installs the default achievement set on an empty table.
// Criteria descriptors are JSONB; the evaluator validates kinds at read
// time, so adding rows here never needs a code change unless the kind is
// new.
const seedAchievements = `
INSERT INTO achievements (id, title, description, icon, criteria)
SELECT * FROM (VALUES
    (gen_random_uuid(), 'Perfect Subject', 'Attend every session of a subject', 'medal',
     '{"kind":"perfect_subject"}'::jsonb),
    (gen_random_uuid(), 'Steady Attender', 'Keep overall attendance at 75% or above', 'chart-up',
     '{"kind":"min_overall","threshold":75}'::jsonb),
    (gen_random_uuid(), 'Spotless Week', 'No absences in the last 7 days', 'calendar-week',
     '{"kind":"no_absent_days","window_days":7}'::jsonb),
    (gen_random_uuid(), 'Spotless Month', 'No absences in the last 30 days', 'calendar-month',
     '{"kind":"no_absent_days","window_days":30}'::jsonb),
    (gen_random_uuid(), 'Across the Board', 'Every subject at 60% or above', 'grid',
     '{"kind":"all_subjects_min","threshold":60}'::jsonb),
    (gen_random_uuid(), 'Fifty Club', 'Attend 50 sessions in total', 'trophy',
     '{"kind":"min_total_attended","count":50}'::jsonb),
    (gen_random_uuid(), 'High Flyer', 'At least 3 subjects at 90% or above', 'rocket',
     '{"kind":"min_subjects_above","percentage":90,"count":3}'::jsonb)
) AS seed(id, title, description, icon, criteria)
WHERE NOT EXISTS (SELECT 1 FROM achievements)
`

// SeedAchievements installs the default achievements when none exist yet.
func (d *DB) SeedAchievements(ctx context.Context) error {
	_, err := d.Client.ExecContext(ctx, seedAchievements)
	return err
}
