/*
Package resample reduces grid-aligned observations to one value per field,
bin and entity.

# Why a Percentile?

Several observers may count the same colony within one bin. Taking the sum
double counts; taking the mean lets a single rushed count drag the figure
down. A high percentile keeps the careful counts and drops the outliers:

	counts for (May-15, Station A):  2  3  5
	p = 0    → 2   (minimum)
	p = 0.75 → 4   (default)
	p = 1    → 5   (maximum)

# Interpolation

Values are sorted and the quantile is interpolated linearly between the two
surrounding order statistics:

	h = p · (n − 1)
	v = x[⌊h⌋] + (h − ⌊h⌋) · (x[⌈h⌉] − x[⌊h⌋])

Each field is reduced on its own. A field's percentile row need not come
from the same observation as another field's.

# Output

Only groups with at least one observation are returned, sorted by bin and
then entity. Turning the sparse result into a full grid × entity table,
with explicit gaps, is the job of package matrix.
*/
package resample
