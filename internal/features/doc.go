// Package features turns attribute records into dense feature vectors.
//
// A Pipeline is fitted once on a training batch and is immutable afterwards.
// Columns are laid out as the numeric attributes, then one one-hot block per
// categorical attribute, then one TF-IDF block per token-bag attribute, all
// in the declared orders of package attributes. A min-max scaler is fitted
// over the assembled matrix. Transform checks every row against the fitted
// width, so a drifted layout fails loudly instead of feeding the classifier
// shifted columns.
package features
